package tgutil

import (
	"runtime"

	"github.com/gotd/td/telegram"

	"github.com/xeptore/tgym/constant"
)

//nolint:exhaustruct
var Device = telegram.DeviceConfig{
	DeviceModel:    "tgym",
	SystemVersion:  runtime.GOOS,
	AppVersion:     constant.Version,
	SystemLangCode: "en",
	LangCode:       "en",
}
