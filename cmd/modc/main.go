package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/goburrow/modbus"
	"github.com/kiwatt-home/controller/pkg/modbusclient"
)

var readCount = flag.Uint("read-count", 1, "how many addresses to read")

func main() {
	address := flag.String("addr", "", "tcp modbus address")
	holdingreg := flag.Int("holdingreg", 0, "")
	slaveID := flag.Int("slave", 1, "modbus slave id")
	value := flag.Int("value", 0, "value to write. will write any value")
	flag.Parse()

	handler := modbus.NewTCPClientHandler(*address)
	handler.SlaveId = byte(*slaveID)
	mcli := modbus.NewClient(handler)
	client := &Client{client: mcli}

	var f interface{}
	var err error
	if isFlagPassed("holdingreg") {
		if isFlagPassed("value") {
			f, err = client.client.WriteSingleRegister(uint16(*holdingreg), uint16(*value))
		} else {
			f, err = client.readHoldingRegisters(uint16(*holdingreg))
		}
	}

	if err != nil {
		log.Println("error was: ", err)
	}
	if v, ok := f.([]byte); ok {
		fmt.Printf("raw response: %# x (length: %d)\n", v, len(v))
	}
	log.Println("value is: ", f)
	handler.Close()
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

type Client struct {
	client modbus.Client
}

func (ts *Client) readHoldingRegisters(address uint16) ([]uint16, error) {
	b, err := ts.client.ReadHoldingRegisters(address, uint16(*readCount))
	fmt.Printf("raw response: %# x (length: %d)\n", b, len(b))
	return modbusclient.DecodeRegisters(b), err
}
