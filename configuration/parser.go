package configuration

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"
)

// Parser reads a Configuration from YAML and applies environment
// variable overrides, modeled on the teacher's versioned configuration
// parser but collapsed to a single schema: this project carries no
// configuration format history yet, so there is nothing to dispatch on.
type Parser struct {
	prefix string
	env    map[string]string
}

// NewParser returns a Parser whose environment overrides are read from
// variables named "<prefix>_<FIELD>...".
func NewParser(prefix string) *Parser {
	p := &Parser{prefix: prefix, env: make(map[string]string)}
	for _, e := range os.Environ() {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			p.env[parts[0]] = parts[1]
		}
	}
	return p
}

// Parse decodes in as YAML into v, then overwrites any field that has a
// corresponding "<prefix>_<PATH>" environment variable set.
//
// v.Abc is overridden by PREFIX_ABC, v.Abc.Xyz by PREFIX_ABC_XYZ, and so
// on; map entries are addressed by their uppercased key.
func (p *Parser) Parse(in []byte, v *Configuration) error {
	if err := yaml.Unmarshal(in, v); err != nil {
		return err
	}
	return p.overwriteFields(reflect.ValueOf(v).Elem(), p.prefix)
}

func (p *Parser) overwriteFields(v reflect.Value, prefix string) error {
	for v.Kind() == reflect.Ptr {
		v = reflect.Indirect(v)
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			sf := v.Type().Field(i)
			fieldPrefix := strings.ToUpper(prefix + "_" + sf.Name)
			if raw, ok := p.env[fieldPrefix]; ok {
				fieldVal := reflect.New(sf.Type)
				if err := yaml.Unmarshal([]byte(raw), fieldVal.Interface()); err != nil {
					return fmt.Errorf("configuration: overriding %s: %w", fieldPrefix, err)
				}
				v.Field(i).Set(reflect.Indirect(fieldVal))
			}
			if err := p.overwriteFields(v.Field(i), fieldPrefix); err != nil {
				return err
			}
		}
	case reflect.Map:
		return p.overwriteMap(v, prefix)
	}
	return nil
}

func (p *Parser) overwriteMap(m reflect.Value, prefix string) error {
	envMapRegexp, err := regexp.Compile(fmt.Sprintf("^%s_([A-Z0-9]+)$", strings.ToUpper(prefix)))
	if err != nil {
		return err
	}

	switch m.Type().Elem().Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice:
		for _, k := range m.MapKeys() {
			if err := p.overwriteFields(m.MapIndex(k), strings.ToUpper(fmt.Sprintf("%s_%s", prefix, k))); err != nil {
				return err
			}
		}
	}

	for key, val := range p.env {
		if submatches := envMapRegexp.FindStringSubmatch(key); submatches != nil {
			mapValue := reflect.New(m.Type().Elem())
			if err := yaml.Unmarshal([]byte(val), mapValue.Interface()); err != nil {
				return err
			}
			if m.IsNil() {
				m.Set(reflect.MakeMap(m.Type()))
			}
			m.SetMapIndex(reflect.ValueOf(strings.ToLower(submatches[1])), reflect.Indirect(mapValue))
		}
	}
	return nil
}
