package rule

import "sort"

// ExtractVariables lists the distinct variable names referenced anywhere in
// expr, sorted. Nothing is evaluated.
func ExtractVariables(expr Expr) []string {
	seen := make(map[string]struct{})
	walk(expr, seen)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func walk(expr Expr, seen map[string]struct{}) {
	switch x := expr.(type) {
	case Var:
		seen[x.Name] = struct{}{}
	case List:
		for _, item := range x.Items {
			walk(item, seen)
		}
	case Op:
		for _, arg := range x.Args {
			walk(arg, seen)
		}
	}
}

// CheckDatasources returns the variables the rule uses that are not in the
// declared datasource list.
func CheckDatasources(expr Expr, declared []string) []string {
	have := make(map[string]struct{}, len(declared))
	for _, d := range declared {
		have[d] = struct{}{}
	}
	missing := []string{}
	for _, name := range ExtractVariables(expr) {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
