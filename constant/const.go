package constant

import (
	_ "embed"
	"fmt"
	"time"
)

var (
	//go:embed version
	Version     string
	compileTime string = "2025-08-01T09:12:44"
	CompileTime time.Time
)

func init() {
	t, err := time.Parse(time.RFC3339, time.Now().Format(time.RFC3339))
	if nil != err {
		panic(fmt.Errorf("could not parse CompileTime constant %q. Make sure you it is set at build time", compileTime))
	}
	CompileTime = t
}
