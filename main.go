package main

import (
	"log"

	"github.com/sjzar/wx4dec/cmd/wx4dec"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	wx4dec.Execute()
}
