package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var outputFormats = []string{"json", "yaml", "raw", "text"}

// writeOutput writes result in the configured format. With no format, nil
// prints nothing and anything else is written as JSON when it marshals and
// as text otherwise.
func writeOutput(v *viper.Viper, w io.Writer, result any) error {
	switch format := strings.ToLower(v.GetString("output")); format {
	case "":
		if result == nil {
			return nil
		}
		data, err := marshalJSON(v, result)
		if err != nil {
			_, err = fmt.Fprintf(w, "%v\n", result)
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "json":
		data, err := marshalJSON(v, result)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	case "raw":
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
		cfg.Fdump(w, result)
		return nil
	case "text":
		_, err := fmt.Fprintf(w, "%v\n", result)
		return err
	default:
		return fmt.Errorf("unknown output format: %s (expected one of %s)",
			format, strings.Join(outputFormats, ", "))
	}
}

func marshalJSON(v *viper.Viper, result any) ([]byte, error) {
	if v.GetBool("no-color") || color.NoColor {
		return json.MarshalIndent(result, "", "  ")
	}
	f := prettyjson.NewFormatter()
	return f.Marshal(result)
}
