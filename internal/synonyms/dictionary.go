package synonyms

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry maps a term to its equivalent terms.
type Entry struct {
	Term       string   `yaml:"term"`
	Equivalent []string `yaml:"equivalent"`
}

// Dictionary is an ordered list of synonym entries. Order determines expansion order.
type Dictionary []Entry

// DefaultDictionary covers common wiring-diagram component names, their abbreviations and
// their Chinese/English variants.
func DefaultDictionary() Dictionary {
	return Dictionary{
		{"油门踏板", []string{"踏板位置传感器", "加速踏板", "acceleratorpedalsensor", "aps"}},
		{"踏板位置传感器", []string{"油门踏板", "acceleratorpedalsensor", "aps"}},
		{"aps", []string{"acceleratorpedalsensor", "油门踏板", "踏板位置传感器"}},
		{"挂车控制模块", []string{"挂车模块", "挂车制动控制", "trailercontrolmodule", "tcm"}},
		{"ecu", []string{"pcm", "发动机控制单元", "enginecontrolunit"}},
		{"仪表", []string{"组合仪表", "cluster", "ipc"}},
		{"喇叭", []string{"horn"}},
		{"点烟器", []string{"cigarette", "cigarlighter", "poweroutlet"}},
		{"大灯", []string{"前照灯", "headlamp", "headlight"}},
		{"空调", []string{"a/c", "空调系统"}},
		{"电动窗", []string{"车窗", "window", "pw"}},
	}
}

type dictionaryFile struct {
	Entries []Entry `yaml:"entries"`
}

// LoadDictionary reads additional entries from a YAML file and appends them to base.
func LoadDictionary(path string, base Dictionary) (Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	var f dictionaryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary: %w", err)
	}
	out := make(Dictionary, 0, len(base)+len(f.Entries))
	out = append(out, base...)
	for _, e := range f.Entries {
		if Normalize(e.Term) == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// lookup returns the normalized equivalence sets of every entry whose key or value matches n.
func (d Dictionary) lookup(n string) []string {
	var out []string
	for _, e := range d {
		key := Normalize(e.Term)
		vals := make([]string, 0, len(e.Equivalent))
		match := key == n
		for _, v := range e.Equivalent {
			nv := Normalize(v)
			vals = append(vals, nv)
			if nv == n {
				match = true
			}
		}
		if match {
			out = append(out, key)
			out = append(out, vals...)
		}
	}
	return out
}
