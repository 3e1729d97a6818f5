// Command plinking-duck runs the PLINK2-style genomic aggregation
// kernels (frequency, Hardy-Weinberg, missingness, LD, scoring) and raw
// sidecar readers directly against PGEN/PVAR/PSAM triples from the shell.
package main

import "github.com/teaguesterling/plinking-duck/cmd/plinking-duck/cmd"

func main() {
	cmd.Run()
}
