package cmd

import (
	"log"

	"v.io/x/lib/cmdline"
)

func Run() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "plinking-duck",
			Short:    "Tools for querying PLINK2 pgen/pvar/psam trios",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdFreq(),
				newCmdHardy(),
				newCmdMissing(),
				newCmdLD(),
				newCmdScore(),
				newCmdPgen(),
				newCmdPvar(),
				newCmdPsam(),
				newCmdPfile(),
				newCmdChecksum(),
			},
		})
}
