package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tensoraccel/tpa/dis/disassembler"
	"github.com/tensoraccel/tpa/isa"
)

func main() {
	inputFile := flag.String("i", "", "Input instruction stream file")
	flag.Parse()

	if *inputFile == "" {
		fmt.Println("Error: Input file is required")
		flag.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(*inputFile)
	if err != nil {
		fmt.Printf("Error reading input file: %v\n", err)
		os.Exit(1)
	}
	if len(data)%isa.INSN_BYTES != 0 {
		fmt.Printf("Warning: %d trailing bytes ignored\n", len(data)%isa.INSN_BYTES)
	}

	fmt.Print(disassembler.Dump(data))
}
