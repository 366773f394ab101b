// Package config loads the domain file that lists, per object, the excision
// radius and the shape map options, plus the time window of the derived
// functions of time.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"sort"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"shapemap/internal/model"
	"shapemap/internal/shapemap"
)

var ErrInvalidConfig = errors.New("invalid domain config")

// Object is one excised object of the domain.
type Object struct {
	Label                         model.ObjectLabel
	InnerRadius                   float64
	TransitionEndsAtCubeSupported bool
	ShapeMap                      shapemap.ShapeMapOptions
}

type Domain struct {
	InitialTime float64
	// ExpirationTime is +Inf when configured as Auto.
	ExpirationTime float64
	Objects        []Object
}

func Load(path string) (Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Domain{}, err
	}
	domain, err := Parse(data)
	if err != nil {
		return Domain{}, fmt.Errorf("%s: %w", path, err)
	}
	return domain, nil
}

// Parse reads a domain config. Objects are returned ordered by label.
func Parse(data []byte) (Domain, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Domain{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return Domain{}, fmt.Errorf("%w: expected a mapping", ErrInvalidConfig)
	}
	fields, err := fieldsOf(doc.Content[0], "InitialTime", "ExpirationTime", "Objects")
	if err != nil {
		return Domain{}, err
	}

	domain := Domain{ExpirationTime: math.Inf(1)}
	if node, ok := fields["InitialTime"]; ok {
		if domain.InitialTime, err = number(node, "InitialTime"); err != nil {
			return Domain{}, err
		}
	}
	if node, ok := fields["ExpirationTime"]; ok && node.Value != "Auto" {
		if domain.ExpirationTime, err = number(node, "ExpirationTime"); err != nil {
			return Domain{}, err
		}
	}
	if !(domain.ExpirationTime >= domain.InitialTime) {
		return Domain{}, fmt.Errorf("%w: ExpirationTime %v is before InitialTime %v",
			ErrInvalidConfig, domain.ExpirationTime, domain.InitialTime)
	}

	objects, ok := fields["Objects"]
	if !ok || objects.Kind != yaml.MappingNode || len(objects.Content) == 0 {
		return Domain{}, fmt.Errorf("%w: Objects must map A, B or None to object options", ErrInvalidConfig)
	}
	seen := map[model.ObjectLabel]bool{}
	for i := 0; i+1 < len(objects.Content); i += 2 {
		label, err := model.ParseObjectLabel(objects.Content[i].Value)
		if err != nil {
			return Domain{}, fmt.Errorf("%w: line %d: %v", ErrInvalidConfig, objects.Content[i].Line, err)
		}
		if seen[label] {
			return Domain{}, fmt.Errorf("%w: object %q listed twice", ErrInvalidConfig, objects.Content[i].Value)
		}
		seen[label] = true
		object, err := parseObject(objects.Content[i+1], label)
		if err != nil {
			return Domain{}, fmt.Errorf("object %s: %w", objects.Content[i].Value, err)
		}
		domain.Objects = append(domain.Objects, object)
	}
	if seen[model.ObjectNone] && len(domain.Objects) > 1 {
		return Domain{}, fmt.Errorf("%w: an unlabelled object must be the only object", ErrInvalidConfig)
	}
	sort.Slice(domain.Objects, func(i, j int) bool { return domain.Objects[i].Label < domain.Objects[j].Label })
	return domain, nil
}

func parseObject(node *yaml.Node, label model.ObjectLabel) (Object, error) {
	fields, err := fieldsOf(node, "InnerRadius", "TransitionEndsAtCubeSupported", "ShapeMap")
	if err != nil {
		return Object{}, err
	}
	object := Object{Label: label}

	radius, ok := fields["InnerRadius"]
	if !ok {
		return Object{}, fmt.Errorf("%w: line %d: InnerRadius is required", ErrInvalidConfig, node.Line)
	}
	if object.InnerRadius, err = number(radius, "InnerRadius"); err != nil {
		return Object{}, err
	}
	if !(object.InnerRadius > 0) || math.IsInf(object.InnerRadius, 0) {
		return Object{}, fmt.Errorf("%w: line %d: InnerRadius must be positive", ErrInvalidConfig, radius.Line)
	}

	if supported, ok := fields["TransitionEndsAtCubeSupported"]; ok {
		if object.TransitionEndsAtCubeSupported, err = cast.ToBoolE(supported.Value); err != nil {
			return Object{}, fmt.Errorf("%w: line %d: TransitionEndsAtCubeSupported: %v", ErrInvalidConfig, supported.Line, err)
		}
	}

	shapeNode, ok := fields["ShapeMap"]
	if !ok {
		return Object{}, fmt.Errorf("%w: line %d: ShapeMap is required", ErrInvalidConfig, node.Line)
	}
	object.ShapeMap, err = shapemap.ParseShapeMapNode(shapeNode, label, object.TransitionEndsAtCubeSupported)
	if err != nil {
		return Object{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return object, nil
}

func fieldsOf(node *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: expected a mapping", ErrInvalidConfig, node.Line)
	}
	fields := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !slices.Contains(allowed, key) {
			return nil, fmt.Errorf("%w: line %d: unknown key %s", ErrInvalidConfig, node.Content[i].Line, key)
		}
		fields[key] = node.Content[i+1]
	}
	return fields, nil
}

func number(node *yaml.Node, name string) (float64, error) {
	if node.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("%w: line %d: %s must be a number", ErrInvalidConfig, node.Line, name)
	}
	v, err := cast.ToFloat64E(node.Value)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: line %d: %s must be a number, got %q", ErrInvalidConfig, node.Line, name, node.Value)
	}
	return v, nil
}
