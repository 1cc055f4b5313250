package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	toggleTrueValueConstant             = "true"
	toggleFalseValueConstant            = "false"
	toggleTypeConstant                  = "bool"
	toggleParseErrorTemplateConstant    = "invalid toggle value %q"
	toggleTruePlaceholderConstant       = "<YES|no>"
	toggleFalsePlaceholderConstant      = "<yes|NO>"
	toggleUsageTemplateConstant         = "`%s`"
	toggleUsageWithTextTemplateConstant = "`%s` %s"
)

var toggleLiterals = map[string]bool{
	"true":  true,
	"yes":   true,
	"on":    true,
	"1":     true,
	"y":     true,
	"t":     true,
	"false": false,
	"no":    false,
	"off":   false,
	"0":     false,
	"n":     false,
	"f":     false,
}

// AddToggleFlag registers a boolean flag that also accepts yes/no style
// values (--yes, --yes=no). target may be nil; the value stays readable
// through FlagSet.GetBool.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}

	value := &toggleValue{target: target}
	value.assign(defaultValue)
	flagSet.VarP(value, name, shorthand, toggleUsage(usage, defaultValue))

	if flag := flagSet.Lookup(name); flag != nil {
		flag.NoOptDefVal = toggleTrueValueConstant
	}
}

// ParseToggle interprets a yes/no style literal. An empty value is true.
func ParseToggle(rawValue string) (bool, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(rawValue))
	if len(normalizedValue) == 0 {
		return true, nil
	}
	parsedValue, known := toggleLiterals[normalizedValue]
	if !known {
		return false, fmt.Errorf(toggleParseErrorTemplateConstant, rawValue)
	}
	return parsedValue, nil
}

func toggleUsage(description string, defaultValue bool) string {
	placeholder := toggleFalsePlaceholderConstant
	if defaultValue {
		placeholder = toggleTruePlaceholderConstant
	}
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return fmt.Sprintf(toggleUsageTemplateConstant, placeholder)
	}
	return fmt.Sprintf(toggleUsageWithTextTemplateConstant, placeholder, trimmedDescription)
}

type toggleValue struct {
	current bool
	target  *bool
}

func (value *toggleValue) assign(newValue bool) {
	value.current = newValue
	if value.target != nil {
		*value.target = newValue
	}
}

func (value *toggleValue) Set(rawValue string) error {
	parsedValue, parseError := ParseToggle(rawValue)
	if parseError != nil {
		return parseError
	}
	value.assign(parsedValue)
	return nil
}

func (value *toggleValue) String() string {
	if value != nil && value.current {
		return toggleTrueValueConstant
	}
	return toggleFalseValueConstant
}

func (value *toggleValue) Type() string {
	return toggleTypeConstant
}
