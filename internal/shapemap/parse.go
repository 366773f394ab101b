package shapemap

import (
	"fmt"
	"slices"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"shapemap/internal/model"
)

const autoValue = "Auto"

// ParseShapeMapOptions reads the options of one shape map. The object label
// and whether TransitionEndsAtCube is supported come from the domain that
// owns the map, not from the text.
func ParseShapeMapOptions(text []byte, object model.ObjectLabel, includeTransitionEndsAtCube bool) (ShapeMapOptions, error) {
	node, err := documentRoot(text)
	if err != nil {
		return ShapeMapOptions{}, err
	}
	return ParseShapeMapNode(node, object, includeTransitionEndsAtCube)
}

// ParseInitialValues reads one InitialValues entry on its own.
func ParseInitialValues(text []byte) (InitialValues, error) {
	node, err := documentRoot(text)
	if err != nil {
		return nil, err
	}
	return parseInitialValues(node)
}

func ParseShapeMapNode(node *yaml.Node, object model.ObjectLabel, includeTransitionEndsAtCube bool) (ShapeMapOptions, error) {
	allowed := []string{"LMax", "InitialValues", "SizeInitialValues"}
	if includeTransitionEndsAtCube {
		allowed = append(allowed, "TransitionEndsAtCube")
	}
	fields, err := mappingFields(node, allowed...)
	if err != nil {
		return ShapeMapOptions{}, err
	}

	opts := ShapeMapOptions{Object: object}
	lmaxNode, err := required(node, fields, "LMax")
	if err != nil {
		return ShapeMapOptions{}, err
	}
	if err := decodeScalar(lmaxNode, "LMax", &opts.LMax); err != nil {
		return ShapeMapOptions{}, err
	}

	if ivNode, ok := fields["InitialValues"]; ok {
		if opts.InitialValues, err = parseInitialValues(ivNode); err != nil {
			return ShapeMapOptions{}, err
		}
	}

	if sizeNode, ok := fields["SizeInitialValues"]; ok {
		if opts.InitialSizeValues, err = parseSizeValues(sizeNode); err != nil {
			return ShapeMapOptions{}, err
		}
	}

	if includeTransitionEndsAtCube {
		cubeNode, err := required(node, fields, "TransitionEndsAtCube")
		if err != nil {
			return ShapeMapOptions{}, err
		}
		var endsAtCube bool
		if err := decodeScalar(cubeNode, "TransitionEndsAtCube", &endsAtCube); err != nil {
			return ShapeMapOptions{}, err
		}
		opts.TransitionEndsAtCube = &endsAtCube
	}

	if err := opts.Validate(); err != nil {
		return ShapeMapOptions{}, err
	}
	return opts, nil
}

func parseInitialValues(node *yaml.Node) (InitialValues, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		if node.Value == "Spherical" {
			return Spherical{}, nil
		}
		return nil, fmt.Errorf("%w: line %d: unknown InitialValues %q", ErrInvalidOptions, node.Line, node.Value)
	case yaml.MappingNode:
		fields, err := mappingFields(node)
		if err != nil {
			return nil, err
		}
		if _, ok := fields["H5Filename"]; ok {
			return parseYlmsFromFile(node)
		}
		if _, ok := fields["Mass"]; ok {
			return parseKerrSchild(node)
		}
		return nil, fmt.Errorf("%w: line %d: InitialValues needs Mass and Spin or H5Filename", ErrInvalidOptions, node.Line)
	default:
		return nil, fmt.Errorf("%w: line %d: InitialValues must be Spherical or a mapping", ErrInvalidOptions, node.Line)
	}
}

func parseKerrSchild(node *yaml.Node) (InitialValues, error) {
	fields, err := mappingFields(node, "Mass", "Spin")
	if err != nil {
		return nil, err
	}
	var ks KerrSchildFromBoyerLindquist
	massNode, err := required(node, fields, "Mass")
	if err != nil {
		return nil, err
	}
	if ks.Mass, err = scalarFloat(massNode, "Mass"); err != nil {
		return nil, err
	}
	spinNode, err := required(node, fields, "Spin")
	if err != nil {
		return nil, err
	}
	if ks.Spin, err = floatTriple(spinNode, "Spin"); err != nil {
		return nil, err
	}
	if err := ks.validate(); err != nil {
		return nil, err
	}
	return ks, nil
}

func parseYlmsFromFile(node *yaml.Node) (InitialValues, error) {
	fields, err := mappingFields(node, "H5Filename", "SubfileNames", "MatchTime", "MatchTimeEpsilon", "SetL1CoefsToZero")
	if err != nil {
		return nil, err
	}
	var y YlmsFromFile
	for _, key := range []string{"H5Filename", "SubfileNames", "MatchTime", "MatchTimeEpsilon", "SetL1CoefsToZero"} {
		if _, err := required(node, fields, key); err != nil {
			return nil, err
		}
	}
	if err := decodeScalar(fields["H5Filename"], "H5Filename", &y.H5Filename); err != nil {
		return nil, err
	}
	if fields["SubfileNames"].Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: line %d: SubfileNames must be a list", ErrInvalidOptions, fields["SubfileNames"].Line)
	}
	if err := fields["SubfileNames"].Decode(&y.SubfileNames); err != nil {
		return nil, fmt.Errorf("%w: SubfileNames: %v", ErrInvalidOptions, err)
	}
	if y.MatchTime, err = scalarFloat(fields["MatchTime"], "MatchTime"); err != nil {
		return nil, err
	}
	if y.MatchTimeEpsilon, err = autoFloat(fields["MatchTimeEpsilon"], "MatchTimeEpsilon"); err != nil {
		return nil, err
	}
	if err := decodeScalar(fields["SetL1CoefsToZero"], "SetL1CoefsToZero", &y.SetL1CoefsToZero); err != nil {
		return nil, err
	}
	if err := y.validate(); err != nil {
		return nil, err
	}
	return y, nil
}

func parseSizeValues(node *yaml.Node) (*[3]float64, error) {
	if node.Kind == yaml.ScalarNode && node.Value == autoValue {
		return nil, nil
	}
	values, err := floatTriple(node, "SizeInitialValues")
	if err != nil {
		return nil, fmt.Errorf("%w (or %s)", err, autoValue)
	}
	return &values, nil
}

func documentRoot(text []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(text, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("%w: empty options", ErrInvalidOptions)
	}
	return doc.Content[0], nil
}

// mappingFields indexes a mapping by key. With allowed keys given, any other
// key is an error.
func mappingFields(node *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: expected a mapping", ErrInvalidOptions, node.Line)
	}
	fields := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate option %s", ErrInvalidOptions, node.Content[i].Line, key)
		}
		if len(allowed) > 0 && !slices.Contains(allowed, key) {
			return nil, fmt.Errorf("%w: line %d: unknown option %s (expected one of %v)", ErrInvalidOptions, node.Content[i].Line, key, allowed)
		}
		fields[key] = node.Content[i+1]
	}
	return fields, nil
}

func required(parent *yaml.Node, fields map[string]*yaml.Node, key string) (*yaml.Node, error) {
	node, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("%w: line %d: missing required option %s", ErrInvalidOptions, parent.Line, key)
	}
	return node, nil
}

func decodeScalar(node *yaml.Node, name string, out any) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: %s must be a scalar", ErrInvalidOptions, node.Line, name)
	}
	if err := node.Decode(out); err != nil {
		return fmt.Errorf("%w: line %d: %s: %v", ErrInvalidOptions, node.Line, name, err)
	}
	return nil
}

func scalarFloat(node *yaml.Node, name string) (float64, error) {
	if node.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("%w: line %d: %s must be a number", ErrInvalidOptions, node.Line, name)
	}
	v, err := cast.ToFloat64E(node.Value)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: %s: %v", ErrInvalidOptions, node.Line, name, err)
	}
	return v, nil
}

func autoFloat(node *yaml.Node, name string) (*float64, error) {
	if node.Kind == yaml.ScalarNode && node.Value == autoValue {
		return nil, nil
	}
	v, err := scalarFloat(node, name)
	if err != nil {
		return nil, fmt.Errorf("%w (or %s)", err, autoValue)
	}
	return &v, nil
}

func floatTriple(node *yaml.Node, name string) ([3]float64, error) {
	var out [3]float64
	if node.Kind != yaml.SequenceNode || len(node.Content) != 3 {
		return out, fmt.Errorf("%w: line %d: %s must be a list of 3 numbers", ErrInvalidOptions, node.Line, name)
	}
	for i, item := range node.Content {
		v, err := scalarFloat(item, fmt.Sprintf("%s[%d]", name, i))
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}
