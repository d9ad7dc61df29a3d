package mux

// patternMacros maps macro names to their expressions. A custom parameter
// pattern that is exactly a macro name, as in ":id(uuid)", is replaced by
// the macro's expression.
var patternMacros = map[string]string{
	"uuid":     `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
	"int":      `[0-9]+`,
	"float":    `[0-9]*\.?[0-9]+`,
	"slug":     `[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*`,
	"alpha":    `[a-zA-Z]+`,
	"alphanum": `[a-zA-Z0-9]+`,
	"date":     `[0-9]{4}-[0-9]{2}-[0-9]{2}`,
	"hex":      `[0-9a-fA-F]+`,
}

// expandMacro returns the expression for a macro name, or the input
// unchanged if the name is not a known macro.
func expandMacro(pattern string) string {
	if expr, ok := patternMacros[pattern]; ok {
		return expr
	}

	return pattern
}
