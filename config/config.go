// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// CollectorConfig controls the ingress worker.
type CollectorConfig struct {
	LogServerEndpoint EndpointConfig `mapstructure:"log_server_endpoint"`
	GenerateWavFiles  bool           `mapstructure:"generate_wav_files"`
}

// EndpointConfig is a bindable ip/port pair.
type EndpointConfig struct {
	IP   string `mapstructure:"ip" validate:"required"`
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535"`
}

func (e EndpointConfig) Addr() string {
	return fmt.Sprintf("%s:%d", e.IP, e.Port)
}

// PersistenceConfig controls the persister worker.
type PersistenceConfig struct {
	PgConnInfo                  string   `mapstructure:"pg_conn_info" validate:"required"`
	MP3ConverterCommandTemplate string   `mapstructure:"mp3_converter_command_template"`
	CallInactivityPeriod        int      `mapstructure:"call_inactivity_period" validate:"min=1"`
	MaintenanceFrequency        int      `mapstructure:"maintenance_frequency" validate:"min=1"`
	Subscriptions               []string `mapstructure:"subscriptions"`
	AutoMigrate                 bool     `mapstructure:"auto_migrate"`
}

func (p PersistenceConfig) InactivityPeriod() time.Duration {
	return time.Duration(p.CallInactivityPeriod) * time.Second
}

func (p PersistenceConfig) MaintenanceInterval() time.Duration {
	return time.Duration(p.MaintenanceFrequency) * time.Second
}

// FeederConfig declares one media-server input channel.
type FeederConfig struct {
	Stream string `mapstructure:"stream" validate:"required"`
	IP     string `mapstructure:"ip" validate:"required"`
	Port   int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Type   string `mapstructure:"type" validate:"required,oneof=M S"`
}

// PlayerInstanceConfig declares one playback slot of the legacy child-process mode.
type PlayerInstanceConfig struct {
	Stream string `mapstructure:"stream" validate:"required"`
	Feeder string `mapstructure:"feeder" validate:"required"`
}

// PlayerConfig controls recorded-call playback.
type PlayerConfig struct {
	// Mode selects v2 static file materialization ("static", default) or
	// the legacy v1 child-process player ("child").
	Mode             string                 `mapstructure:"mode" validate:"omitempty,oneof=static child"`
	CommandTemplate  string                 `mapstructure:"command_template"`
	FilenameTemplate string                 `mapstructure:"filename_template"`
	VoicerecRepo     string                 `mapstructure:"voicerec_repo"`
	VoicerecURL      string                 `mapstructure:"voicerec_url"`
	Instances        []PlayerInstanceConfig `mapstructure:"instances"`
}

// MediaConfig controls the media router worker.
type MediaConfig struct {
	MediaServerEndpoint     string         `mapstructure:"media_server_endpoint"`
	CommandListenerEndpoint string         `mapstructure:"command_listener_endpoint" validate:"required"`
	CallInactivityPeriod    int            `mapstructure:"call_inactivity_period" validate:"min=1"`
	MaintenanceFrequency    int            `mapstructure:"maintenance_frequency" validate:"min=1"`
	Feeders                 []FeederConfig `mapstructure:"feeders"`
	Player                  PlayerConfig   `mapstructure:"player"`
	Subscriptions           []string       `mapstructure:"subscriptions"`
}

func (m MediaConfig) InactivityPeriod() time.Duration {
	return time.Duration(m.CallInactivityPeriod) * time.Second
}

func (m MediaConfig) MaintenanceInterval() time.Duration {
	return time.Duration(m.MaintenanceFrequency) * time.Second
}

// TracerConfig controls the tracer worker. JSONPublisher is a Redis address;
// traces are published on JSONChannel.
type TracerConfig struct {
	JSONPublisher               string   `mapstructure:"json_publisher"`
	JSONChannel                 string   `mapstructure:"json_channel"`
	PublishOneJSONVoiceMsgEvery int      `mapstructure:"publish_one_json_voice_msg_every"`
	Subscriptions               []string `mapstructure:"subscriptions"`
}

// BasicConfig holds cross-worker switches.
type BasicConfig struct {
	MP3Mode bool `mapstructure:"mp3_mode"`
}

// Config is the full configuration of the daemon. Environment discovery
// happens exactly once, in Load; workers never read the environment.
type Config struct {
	Basic       BasicConfig       `mapstructure:"basic"`
	Collector   CollectorConfig   `mapstructure:"collector"`
	Persistence PersistenceConfig `mapstructure:"persistence_manager"`
	Media       MediaConfig       `mapstructure:"media_manager"`
	Tracer      TracerConfig      `mapstructure:"tracer_manager"`

	LogLevel string `mapstructure:"log_level"`

	// Captured from the environment at startup.
	WorkPath  string `mapstructure:"-"`
	HTTPDHome string `mapstructure:"-"`
	Apli      string `mapstructure:"-"`
}

// Load reads the YAML configuration file named by CALLSTREAMSERVER_CONF_FILE
// (or the explicit path when non-empty) and captures the environment values
// the alarm collaborator needs.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CALLSTREAMSERVER_CONF_FILE")
	}
	if path == "" {
		return nil, fmt.Errorf("configuration file not set: CALLSTREAMSERVER_CONF_FILE is empty")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading configuration %s: %w", path, err)
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	cfg.WorkPath = os.Getenv("CALLSTREAMSERVER_WORK_PATH")
	if cfg.WorkPath == "" {
		cfg.WorkPath = "."
	}
	cfg.HTTPDHome = os.Getenv("HTTPD_HOME")
	cfg.Apli = os.Getenv("APLI")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural constraints. Failure is fatal at startup.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, inst := range c.Media.Player.Instances {
		if !c.hasFeeder(inst.Feeder) {
			return fmt.Errorf("invalid configuration: player instance %s references unknown feeder %s",
				inst.Stream, inst.Feeder)
		}
	}
	return nil
}

func (c *Config) hasFeeder(name string) bool {
	for _, f := range c.Media.Feeders {
		if f.Stream == name {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("collector.log_server_endpoint.ip", "127.0.0.1")
	v.SetDefault("collector.log_server_endpoint.port", 4321)
	v.SetDefault("collector.generate_wav_files", false)
	v.SetDefault("persistence_manager.call_inactivity_period", 300)
	v.SetDefault("persistence_manager.maintenance_frequency", 60)
	v.SetDefault("persistence_manager.subscriptions", []string{"S_", "V_"})
	v.SetDefault("media_manager.call_inactivity_period", 300)
	v.SetDefault("media_manager.maintenance_frequency", 60)
	v.SetDefault("media_manager.subscriptions", []string{"S_"})
	v.SetDefault("media_manager.player.mode", "static")
	v.SetDefault("tracer_manager.subscriptions", []string{"S_", "V_"})
	v.SetDefault("tracer_manager.json_channel", "callstream.trace")
	v.SetDefault("tracer_manager.publish_one_json_voice_msg_every", 0)
}
