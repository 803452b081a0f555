package utils

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"xaas-logging.log-shipper/pkg"
)

func PrintLogo() {
	logo := figure.NewColorFigure("Log Shipper", "", "blue", true)
	logo.Print()
	version := figure.NewColorFigure(fmt.Sprintf("v%s", pkg.GetVersion()), "", "red", true)
	version.Print()
	fmt.Println()
}
