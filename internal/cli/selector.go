package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	brunt "github.com/tj-smith47/brunt-go"
)

type selectorFlags struct {
	name   string
	uri    string
	serial string
}

func (s *selectorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.name, "name", "", "Thing name as shown in the Brunt app")
	cmd.Flags().StringVar(&s.uri, "uri", "", "Thing URI, e.g. /hub/<serial>")
	cmd.Flags().StringVar(&s.serial, "serial", "", "Thing serial number")
}

// selector resolves the flags. A serial is shorthand for its URI.
func (s *selectorFlags) selector() (brunt.Selector, error) {
	sel := brunt.Selector{Name: s.name, URI: s.uri}
	if sel.URI == "" {
		sel.URI = brunt.URIForSerial(s.serial)
	}
	if sel.Name == "" && sel.URI == "" {
		return brunt.Selector{}, fmt.Errorf("%w: pass --name, --uri or --serial", brunt.ErrMissingSelector)
	}
	return sel, nil
}
