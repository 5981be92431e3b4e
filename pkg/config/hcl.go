// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files.
// Expressions can read the environment through the env object:
//
//	root = "${env.HOME}/app"
//
//	site "core" {
//	  url         = "https://updates.example.com/core/"
//	  upload_url  = "s3://example-updates/core"
//	  credentials = "env:CORE_UPLOAD"
//	}
type HCLParser struct {
	// Environ defaults to os.Environ
	Environ func() []string
}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

func (p *HCLParser) evalContext() *hcl.EvalContext {
	environ := p.Environ
	if environ == nil {
		environ = os.Environ
	}
	env := map[string]cty.Value{}
	for _, kv := range environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// Define HCL schema
	type hclConfig struct {
		Root        string `hcl:"root,optional"`
		Index       string `hcl:"index,optional"`
		Platform    string `hcl:"platform,optional"`
		Concurrency int    `hcl:"concurrency,optional"`
		Retries     int    `hcl:"retries,optional"`
		Proxy       string `hcl:"proxy,optional"`
		Offline     bool   `hcl:"offline,optional"`
		Sites       []struct {
			Name        string `hcl:"name,label"`
			URL         string `hcl:"url"`
			UploadURL   string `hcl:"upload_url,optional"`
			Credentials string `hcl:"credentials,optional"`
			Description string `hcl:"description,optional"`
		} `hcl:"site,block"`
	}

	// Decode HCL
	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, p.evalContext(), &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	cfg := &Config{
		Root:        hclCfg.Root,
		Index:       hclCfg.Index,
		Platform:    hclCfg.Platform,
		Concurrency: hclCfg.Concurrency,
		Retries:     hclCfg.Retries,
		Proxy:       hclCfg.Proxy,
		Offline:     hclCfg.Offline,
	}
	for _, s := range hclCfg.Sites {
		cfg.Sites = append(cfg.Sites, Site{
			Name:        s.Name,
			URL:         s.URL,
			UploadURL:   s.UploadURL,
			Credentials: s.Credentials,
			Description: s.Description,
		})
	}

	return cfg, nil
}
