package main

import (
	"sync"

	"xaas-logging.log-shipper/cmd/log-shipper/shipper"
	"xaas-logging.log-shipper/cmd/utils"
)

// Print logo and run the log shipper
func main() {
	utils.PrintLogo()

	var wg sync.WaitGroup
	wg.Add(1)
	shipper.Run(&wg)
	wg.Wait()
}
