package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	brunt "github.com/tj-smith47/brunt-go"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// thingView is the rendered form of a thing.
type thingView struct {
	Name            string     `json:"name" yaml:"name"`
	Serial          string     `json:"serial,omitempty" yaml:"serial,omitempty"`
	URI             string     `json:"uri" yaml:"uri"`
	Model           string     `json:"model,omitempty" yaml:"model,omitempty"`
	Position        *int       `json:"position,omitempty" yaml:"position,omitempty"`
	CurrentPosition *int       `json:"current_position,omitempty" yaml:"current_position,omitempty"`
	RequestPosition *int       `json:"request_position,omitempty" yaml:"request_position,omitempty"`
	MoveState       *int       `json:"move_state,omitempty" yaml:"move_state,omitempty"`
	FirmwareVersion string     `json:"fw_version,omitempty" yaml:"fw_version,omitempty"`
	LastUpdated     *time.Time `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
}

func newThingView(t brunt.Thing) thingView {
	v := thingView{
		Name:            t.Name,
		Serial:          t.Serial,
		URI:             t.URI,
		Model:           t.Model,
		FirmwareVersion: t.FirmwareVersion,
	}
	if p, ok := t.Position(); ok {
		v.Position = &p
	}
	if t.Has(brunt.FieldCurrentPosition) {
		p := t.CurrentPosition
		v.CurrentPosition = &p
	}
	if t.Has(brunt.FieldRequestPosition) {
		p := t.RequestPosition
		v.RequestPosition = &p
	}
	if t.Has(brunt.FieldMoveState) {
		m := t.MoveState
		v.MoveState = &m
	}
	if t.Has(brunt.FieldTimestamp) {
		ts := t.LastUpdated
		v.LastUpdated = &ts
	}
	return v
}

func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", outputTable, "Output format: table, json, yaml")
}

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
}

func writeThings(w io.Writer, format string, things []brunt.Thing) error {
	views := make([]thingView, len(things))
	for i, t := range things {
		views[i] = newThingView(t)
	}

	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tURI\tPOSITION\tMODEL\tFIRMWARE")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Name, v.URI, optInt(v.Position), dash(v.Model), dash(v.FirmwareVersion))
	}
	return tw.Flush()
}

func writeThing(w io.Writer, format string, thing brunt.Thing) error {
	if format == outputTable {
		return writeThings(w, format, []brunt.Thing{thing})
	}

	v := newThingView(thing)
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func optInt(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
