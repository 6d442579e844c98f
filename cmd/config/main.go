package main

import (
	"fmt"
	"os"

	"tricount/util"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("usage: ./bin/config [coord|client]")
		fmt.Println("example ./bin/config coord")
		return
	}

	var err error
	if os.Args[1] == "coord" {
		err = util.WriteJSONConfig("config/coord_config.json", util.DefaultCoordConfig())
	} else if os.Args[1] == "client" {
		err = util.WriteJSONConfig("config/client_config.json", util.ClientConfig{
			ClientId:  "client1",
			CoordAddr: "127.0.0.1:50051",
		})
	} else {
		fmt.Println("usage: ./bin/config [coord|client]")
		fmt.Println("example ./bin/config coord")
		return
	}
	if err != nil {
		fmt.Println("Failed to write config file", err)
	}
}
