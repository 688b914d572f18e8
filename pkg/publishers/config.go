package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported sink types.
const (
	TypeSQS       = "sqs"
	TypeSNS       = "sns"
	TypeGCPPubSub = "gcp_pubsub"
	TypeHTTP      = "http"
)

const defaultHTTPTimeoutSeconds = 5

// FileConfig is the decoded publishers file.
type FileConfig struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig declares one event sink. Events restricts delivery to the
// listed event types; a trailing "*" matches a family such as "signin.*".
// No entries means every event.
type PublisherConfig struct {
	ID        string                    `json:"id" yaml:"id"`
	Type      string                    `json:"type" yaml:"type"`
	Enabled   *bool                     `json:"enabled" yaml:"enabled"`
	Events    []string                  `json:"events" yaml:"events"`
	SQS       *SQSPublisherConfig       `json:"sqs" yaml:"sqs"`
	SNS       *SNSPublisherConfig       `json:"sns" yaml:"sns"`
	GCPPubSub *GCPPubSubPublisherConfig `json:"gcp_pubsub" yaml:"gcp_pubsub"`
	HTTP      *HTTPPublisherConfig      `json:"http" yaml:"http"`
}

// AWSConfig holds settings shared by the AWS sinks. Static credentials and the
// endpoint are optional; the default credential chain is used otherwise.
type AWSConfig struct {
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token"`
}

type SQSPublisherConfig struct {
	AWSConfig `yaml:",inline"`
	QueueURL  string `json:"queue_url" yaml:"queue_url"`
}

type SNSPublisherConfig struct {
	AWSConfig `yaml:",inline"`
	TopicARN  string `json:"topic_arn" yaml:"topic_arn"`
}

type GCPPubSubPublisherConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
}

// HTTPPublisherConfig posts each event as JSON to a webhook.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// LoadConfig reads and validates a YAML or JSON publishers file. The format is
// chosen by extension; anything other than .json is read as YAML.
func LoadConfig(path string) (*FileConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	var fc FileConfig
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &fc)
	} else {
		err = yaml.Unmarshal(raw, &fc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode publishers file %s: %w", filepath.Base(path), err)
	}
	if err := fc.normalize(); err != nil {
		return nil, err
	}
	return &fc, nil
}

func (fc *FileConfig) normalize() error {
	if len(fc.Publishers) == 0 {
		return errors.New("publishers file contains no publishers entries")
	}
	seen := make(map[string]struct{}, len(fc.Publishers))
	for i := range fc.Publishers {
		cfg := &fc.Publishers[i]
		cfg.normalize()
		if err := cfg.validate(); err != nil {
			return fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := seen[cfg.ID]; dup {
			return fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		seen[cfg.ID] = struct{}{}
	}
	return nil
}

// Enabled returns the sinks not switched off with enabled: false.
func (fc *FileConfig) Enabled() []PublisherConfig {
	if fc == nil {
		return nil
	}
	out := make([]PublisherConfig, 0, len(fc.Publishers))
	for _, cfg := range fc.Publishers {
		if cfg.Enabled == nil || *cfg.Enabled {
			out = append(out, cfg)
		}
	}
	return out
}

// Accepts reports whether the sink subscribes to evtType.
func (cfg PublisherConfig) Accepts(evtType string) bool {
	if len(cfg.Events) == 0 {
		return true
	}
	for _, pattern := range cfg.Events {
		if pattern == "*" || pattern == evtType {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasPrefix(evtType, prefix) {
			return true
		}
	}
	return false
}

func (cfg *PublisherConfig) normalize() {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	cfg.Events = trimAll(cfg.Events)

	if cfg.SQS != nil {
		cfg.SQS.QueueURL = strings.TrimSpace(cfg.SQS.QueueURL)
		cfg.SQS.AWSConfig.normalize()
	}
	if cfg.SNS != nil {
		cfg.SNS.TopicARN = strings.TrimSpace(cfg.SNS.TopicARN)
		cfg.SNS.AWSConfig.normalize()
	}
	if g := cfg.GCPPubSub; g != nil {
		g.ProjectID = strings.TrimSpace(g.ProjectID)
		g.Topic = strings.TrimSpace(g.Topic)
		g.CredentialsFile = strings.TrimSpace(g.CredentialsFile)
		g.Endpoint = strings.TrimSpace(g.Endpoint)
	}
	if h := cfg.HTTP; h != nil {
		h.URL = strings.TrimSpace(h.URL)
		h.Method = strings.ToUpper(strings.TrimSpace(h.Method))
		if h.Method == "" {
			h.Method = http.MethodPost
		}
		if h.TimeoutSeconds <= 0 {
			h.TimeoutSeconds = defaultHTTPTimeoutSeconds
		}
		h.Headers = trimHeaders(h.Headers)
	}
}

func (c *AWSConfig) normalize() {
	c.Region = strings.TrimSpace(c.Region)
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	c.AccessKeyID = strings.TrimSpace(c.AccessKeyID)
	c.SecretAccessKey = strings.TrimSpace(c.SecretAccessKey)
	c.SessionToken = strings.TrimSpace(c.SessionToken)
}

// required returns the mandatory fields of the sink's config block.
func (cfg PublisherConfig) required() (block string, present bool, fields map[string]string) {
	switch cfg.Type {
	case TypeSQS:
		if cfg.SQS == nil {
			return TypeSQS, false, nil
		}
		return TypeSQS, true, map[string]string{"queue_url": cfg.SQS.QueueURL, "region": cfg.SQS.Region}
	case TypeSNS:
		if cfg.SNS == nil {
			return TypeSNS, false, nil
		}
		return TypeSNS, true, map[string]string{"topic_arn": cfg.SNS.TopicARN, "region": cfg.SNS.Region}
	case TypeGCPPubSub:
		if cfg.GCPPubSub == nil {
			return TypeGCPPubSub, false, nil
		}
		return TypeGCPPubSub, true, map[string]string{"project_id": cfg.GCPPubSub.ProjectID, "topic": cfg.GCPPubSub.Topic}
	case TypeHTTP:
		if cfg.HTTP == nil {
			return TypeHTTP, false, nil
		}
		return TypeHTTP, true, map[string]string{"url": cfg.HTTP.URL}
	}
	return "", true, nil
}

func (cfg PublisherConfig) validate() error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.Type == "" {
		return fmt.Errorf("type is required for publisher %q", cfg.ID)
	}
	block, present, fields := cfg.required()
	if !present {
		return fmt.Errorf("%s config required for publisher %q", block, cfg.ID)
	}
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if fields[name] == "" {
			return fmt.Errorf("%s.%s is required for publisher %q", block, name, cfg.ID)
		}
	}
	return nil
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func trimHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
