package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Sternrassler/vinyl-library/pkg/collection"
	"gopkg.in/yaml.v3"
)

const defaultProxy = "http://localhost:5175"

// Profile holds reusable settings, read from a YAML file:
//
//	proxy: http://localhost:5175
//	username: jschow
//	folder: 0
//	per_page: 100
//	concurrency: 4
type Profile struct {
	Proxy       string `yaml:"proxy"`
	Username    string `yaml:"username"`
	Folder      *int   `yaml:"folder"`
	PerPage     int    `yaml:"per_page"`
	Concurrency int    `yaml:"concurrency"`
	Direct      bool   `yaml:"direct"`
}

func defaultProfile() Profile {
	return Profile{
		Proxy:       defaultProxy,
		PerPage:     collection.DefaultPerPage,
		Concurrency: 1,
	}
}

func loadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

// merge returns p with every field set in over replacing its own.
func (p Profile) merge(over Profile) Profile {
	if over.Proxy != "" {
		p.Proxy = over.Proxy
	}
	if over.Username != "" {
		p.Username = over.Username
	}
	if over.Folder != nil {
		p.Folder = over.Folder
	}
	if over.PerPage > 0 {
		p.PerPage = over.PerPage
	}
	if over.Concurrency > 0 {
		p.Concurrency = over.Concurrency
	}
	p.Direct = p.Direct || over.Direct
	return p
}

func (p Profile) collectionConfig() collection.Config {
	cfg := collection.DefaultConfig(p.Username)
	if p.Folder != nil {
		cfg.FolderID = *p.Folder
	}
	cfg.PerPage = p.PerPage
	return cfg
}
