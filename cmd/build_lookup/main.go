// Command build_lookup flattens a relics catalogue (domains, sets, pieces)
// into the name -> record map the server loads.
package main

import (
	"flag"
	"fmt"
	"os"

	"reliclog/pkg/refdata"
)

func main() {
	in := flag.String("in", "relics.json", "relics catalogue")
	out := flag.String("out", "relicLookup.json", "flattened lookup to write")
	flag.Parse()

	domains, err := refdata.ReadDomains(*in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	l := refdata.BuildLookup(domains)
	if err := refdata.WriteLookup(*out, l); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d relics to %s\n", l.Len(), *out)
}
