package cli

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// stringFlag returns the trimmed value of a defined flag
func stringFlag(fs *flag.FlagSet, name string) string {
	f := fs.Lookup(name)
	if f == nil {
		return ""
	}
	return strings.TrimSpace(f.Value.String())
}

// boolFlag returns the value of a defined boolean flag
func boolFlag(fs *flag.FlagSet, name string) bool {
	v, _ := strconv.ParseBool(stringFlag(fs, name))
	return v
}

// optionalInt parses an integer flag; an empty value yields nil
func optionalInt(fs *flag.FlagSet, name string) (*int, error) {
	s := stringFlag(fs, name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("-%s debe ser un número: %q", name, s)
	}
	return &v, nil
}

// visited returns the names of the flags given on the command line
func visited(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// requireID returns the -id flag or an error naming the command
func requireID(fs *flag.FlagSet) (string, error) {
	id := stringFlag(fs, "id")
	if id == "" {
		return "", fmt.Errorf("%s: -id es obligatorio", fs.Name())
	}
	return id, nil
}
