package main

import (
	"fmt"
	"os"

	"github.com/eleven-am/hlsselect"
	"gopkg.in/yaml.v3"
)

type sourcesFile struct {
	Sources []hlsselect.CandidateSource `yaml:"sources"`
}

func loadSources(path string) ([]hlsselect.CandidateSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return parseSources(data)
}

func parseSources(data []byte) ([]hlsselect.CandidateSource, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	if doc.Kind == yaml.SequenceNode {
		var sources []hlsselect.CandidateSource
		if err := doc.Decode(&sources); err != nil {
			return nil, fmt.Errorf("decode sources: %w", err)
		}
		return sources, nil
	}

	var file sourcesFile
	if err := doc.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	return file.Sources, nil
}
