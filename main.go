package main

import (
	"flag"

	"kyri56xcaesar/ttms-proj/internal/ttms"
)

func main() {
	confPath := flag.String("config", ".env", "path to the env configuration file")
	flag.Parse()

	ttms.InitAndServe(*confPath)
}
