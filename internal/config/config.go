package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds the AMF configuration.
type Config struct {
	AMF           AMFConfig           `yaml:"amf"`
	NGAP          NGAPConfig          `yaml:"ngap"`
	SBI           SBIConfig           `yaml:"sbi"`
	NF            NFConfig            `yaml:"nf"`
	Database      DatabaseConfig      `yaml:"database"`
	NRF           NRFConfig           `yaml:"nrf"`
	AUSF          PeerConfig          `yaml:"ausf"`
	UDM           PeerConfig          `yaml:"udm"`
	SMF           PeerConfig          `yaml:"smf"`
	Security      SecurityConfig      `yaml:"security"`
	Timers        TimersConfig        `yaml:"timers"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// AMFConfig holds the AMF identity announced in NG Setup responses.
type AMFConfig struct {
	Name             string        `yaml:"name"`
	GuamiList        []Guami       `yaml:"guami_list"`
	PlmnSupportList  []PlmnSupport `yaml:"plmn_support_list"`
	RelativeCapacity uint8         `yaml:"relative_capacity"`
}

// Guami identifies this AMF within a PLMN (region + set + pointer, hex).
type Guami struct {
	PlmnID      PlmnID `yaml:"plmn_id"`
	AmfRegionID string `yaml:"amf_region_id"`
	AmfSetID    string `yaml:"amf_set_id"`
	AmfPointer  string `yaml:"amf_pointer"`
}

// PlmnID is an MCC/MNC pair in decimal-digit string form.
type PlmnID struct {
	MCC string `yaml:"mcc"`
	MNC string `yaml:"mnc"`
}

// PlmnSupport binds a PLMN to its served slices and tracking areas.
type PlmnSupport struct {
	PlmnID     PlmnID   `yaml:"plmn_id"`
	SNssaiList []SNssai `yaml:"s_nssai_list"`
	TaiList    []Tai    `yaml:"tai_list"`
}

// SNssai identifies a slice by SST and optional 3-octet-hex SD.
type SNssai struct {
	SST uint8  `yaml:"sst"`
	SD  string `yaml:"sd,omitempty"`
}

// Tai is a tracking area identity (PLMN + 3-octet-hex TAC).
type Tai struct {
	PlmnID PlmnID `yaml:"plmn_id"`
	TAC    string `yaml:"tac"`
}

// NGAPConfig holds the N2 interface configuration.
type NGAPConfig struct {
	BindAddress string `yaml:"bind_address"` // host:port, SCTP
}

// SBIConfig holds the Service Based Interface configuration.
type SBIConfig struct {
	Scheme      string `yaml:"scheme"`
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
}

// NFConfig holds NF-instance identity used for NRF registration.
type NFConfig struct {
	Name       string `yaml:"name"`
	InstanceID string `yaml:"instance_id"`
}

// DatabaseConfig holds the context snapshot store configuration.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NRFConfig holds NRF registration configuration.
type NRFConfig struct {
	Enabled           bool   `yaml:"enabled"`
	URL               string `yaml:"url"`
	HeartbeatInterval int    `yaml:"heartbeat_interval"` // seconds
}

// PeerConfig is the location of a peer network function.
type PeerConfig struct {
	URL string `yaml:"url"`
}

// SecurityConfig holds NAS algorithm preference order.
type SecurityConfig struct {
	IntegrityOrder []string `yaml:"integrity_order"`
	CipheringOrder []string `yaml:"ciphering_order"`
}

// TimersConfig holds NAS MM timer durations in seconds. The timers are
// scheduled by the NAS subsystem; the core only carries the values.
type TimersConfig struct {
	T3502 uint32 `yaml:"t3502"`
	T3510 uint32 `yaml:"t3510"`
	T3512 uint32 `yaml:"t3512"`
	T3560 uint32 `yaml:"t3560"`
	T3565 uint32 `yaml:"t3565"`
}

// ObservabilityConfig holds metrics and logging configuration.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig holds log level configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from a YAML file. A missing file yields the
// default configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.NF.InstanceID == "" {
		cfg.NF.InstanceID = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.AMF.Name == "" {
		return fmt.Errorf("amf name is required")
	}
	if len(c.AMF.GuamiList) == 0 {
		return fmt.Errorf("at least one GUAMI is required")
	}
	if len(c.AMF.PlmnSupportList) == 0 {
		return fmt.Errorf("at least one supported PLMN is required")
	}
	for _, plmn := range c.AMF.PlmnSupportList {
		if len(plmn.PlmnID.MCC) != 3 {
			return fmt.Errorf("invalid MCC %q: must be three digits", plmn.PlmnID.MCC)
		}
		if len(plmn.PlmnID.MNC) < 2 || len(plmn.PlmnID.MNC) > 3 {
			return fmt.Errorf("invalid MNC %q: must be two or three digits", plmn.PlmnID.MNC)
		}
	}
	if c.NGAP.BindAddress == "" {
		return fmt.Errorf("ngap bind address is required")
	}
	if c.SBI.Port <= 0 || c.SBI.Port > 65535 {
		return fmt.Errorf("invalid SBI port: %d", c.SBI.Port)
	}
	return nil
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		AMF: AMFConfig{
			Name: "amf-1",
			GuamiList: []Guami{
				{
					PlmnID:      PlmnID{MCC: "208", MNC: "93"},
					AmfRegionID: "01",
					AmfSetID:    "001",
					AmfPointer:  "00",
				},
			},
			PlmnSupportList: []PlmnSupport{
				{
					PlmnID:     PlmnID{MCC: "208", MNC: "93"},
					SNssaiList: []SNssai{{SST: 1}},
					TaiList: []Tai{
						{PlmnID: PlmnID{MCC: "208", MNC: "93"}, TAC: "000001"},
					},
				},
			},
			RelativeCapacity: 255,
		},
		NGAP: NGAPConfig{
			BindAddress: "0.0.0.0:38412",
		},
		SBI: SBIConfig{
			Scheme:      "http",
			BindAddress: "0.0.0.0",
			Port:        8080,
		},
		NF: NFConfig{
			Name:       "amf-1",
			InstanceID: uuid.NewString(),
		},
		Database: DatabaseConfig{
			Enabled: false,
		},
		NRF: NRFConfig{
			Enabled:           false,
			URL:               "http://localhost:8000",
			HeartbeatInterval: 30,
		},
		Security: SecurityConfig{
			IntegrityOrder: []string{"NIA2", "NIA1"},
			CipheringOrder: []string{"NEA0", "NEA2", "NEA1"},
		},
		Timers: TimersConfig{
			T3502: 720,
			T3510: 15,
			T3512: 3240,
			T3560: 6,
			T3565: 6,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true, Port: 9094},
			Logging: LoggingConfig{Level: "info"},
		},
	}
}
