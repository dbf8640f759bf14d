package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL  string `yaml:"base_url" validate:"required,url"`
	Timezone string `yaml:"timezone" validate:"required"`

	Session   SessionConfig  `yaml:"session"`
	Endpoints EndpointConfig `yaml:"endpoints"`
	Stations  StationConfig  `yaml:"stations"`

	BonusID      string `yaml:"bonus_id" validate:"required"`
	NominalPrice string `yaml:"nominal_price" validate:"required"`

	NotificationLeadMinutes int `yaml:"notification_lead_minutes" validate:"min=1"`
	ResponseTimeoutMinutes  int `yaml:"response_timeout_minutes" validate:"min=1"`

	Trips TripTable `yaml:"trips"`

	TraceDir string `yaml:"trace_dir" validate:"required"`

	DryRun    bool `yaml:"dry_run"`
	DebugMode bool `yaml:"debug_mode"`
}

type SessionConfig struct {
	CookieName       string `yaml:"cookie_name" validate:"required"`
	XSRFCookieName   string `yaml:"xsrf_cookie_name" validate:"required"`
	LoggedInMarker   string `yaml:"logged_in_marker" validate:"required"`
	UserMenuSelector string `yaml:"user_menu_selector" validate:"required"`

	HeartbeatMinutes int `yaml:"heartbeat_minutes" validate:"min=1"`
	DeepCheckMinutes int `yaml:"deep_check_minutes" validate:"min=1"`

	RequestTimeoutSeconds  int `yaml:"request_timeout_seconds" validate:"min=1"`
	PageLoadTimeoutSeconds int `yaml:"page_load_timeout_seconds" validate:"min=1"`
}

// EndpointConfig holds the remote site's paths. They are configurable
// because the site has renamed paths before without notice.
type EndpointConfig struct {
	Login           string `yaml:"login" validate:"required"`
	Home            string `yaml:"home" validate:"required"`
	PrivateArea     string `yaml:"private_area" validate:"required"`
	Tickets         string `yaml:"tickets" validate:"required"`
	Routes          string `yaml:"routes" validate:"required"`
	Reservation     string `yaml:"reservation" validate:"required"`
	Passengers      string `yaml:"passengers" validate:"required"`
	OperationUpdate string `yaml:"operation_update" validate:"required"`
	Payment         string `yaml:"payment" validate:"required"`
	ProceedFormat   string `yaml:"proceed_format" validate:"required"`
	FreeBonusSuffix string `yaml:"free_bonus_suffix" validate:"required"`
}

type StationConfig struct {
	OriginID        string `yaml:"origin_id" validate:"required"`
	OriginName      string `yaml:"origin_name" validate:"required"`
	DestinationID   string `yaml:"destination_id" validate:"required"`
	DestinationName string `yaml:"destination_name" validate:"required"`
}

// TripTable is the typed schedule: per direction a default departure
// time, optional per-weekday overrides, and the time->trip-id mapping
// the reservation endpoint needs.
type TripTable struct {
	Outbound DirectionSchedule `yaml:"outbound"`
	Return   DirectionSchedule `yaml:"return"`
}

type DirectionSchedule struct {
	DefaultTime string            `yaml:"default_time"`
	Weekdays    map[string]string `yaml:"weekdays"`
	TripIDs     map[string]string `yaml:"trip_ids"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:  "",
		Timezone: "Europe/Madrid",
		Session: SessionConfig{
			CookieName:             "app_session",
			XSRFCookieName:         "XSRF-TOKEN",
			LoggedInMarker:         "Your current balance",
			UserMenuSelector:       "div.dropdownMainMenuText",
			HeartbeatMinutes:       3,
			DeepCheckMinutes:       30,
			RequestTimeoutSeconds:  10,
			PageLoadTimeoutSeconds: 15,
		},
		Endpoints: EndpointConfig{
			Login:           "/client/login",
			Home:            "/",
			PrivateArea:     "/my-private-area",
			Tickets:         "/tickets-management",
			Routes:          "/routes",
			Reservation:     "/route/reservation",
			Passengers:      "/passengers",
			OperationUpdate: "/operation-update",
			Payment:         "/payment",
			ProceedFormat:   "/route/%s/proceed-reservation",
			FreeBonusSuffix: "/free-bonus",
		},
		NominalPrice:            "995",
		NotificationLeadMinutes: 75,
		ResponseTimeoutMinutes:  50,
		TraceDir:                "traces",
		Trips: TripTable{
			Outbound: DirectionSchedule{Weekdays: map[string]string{}, TripIDs: map[string]string{}},
			Return:   DirectionSchedule{Weekdays: map[string]string{}, TripIDs: map[string]string{}},
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no config found; wrote a template to %s, fill it in and restart", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the struct tags and then the trip table, so a gap that
// would otherwise surface mid-purchase is caught at startup instead.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: unknown timezone %q: %w", c.Timezone, err)
	}

	if err := c.Trips.Outbound.validate("outbound"); err != nil {
		return err
	}
	if err := c.Trips.Return.validate("return"); err != nil {
		return err
	}

	return nil
}

// Weekday keys must match what the resolver looks up at runtime, so a
// typo cannot silently fall back to the default time.
var weekdayNames = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// validate ensures the weekday keys are real and every departure time
// reachable for some weekday maps to a trip identifier.
func (d DirectionSchedule) validate(name string) error {
	if d.DefaultTime == "" && len(d.Weekdays) == 0 {
		return fmt.Errorf("config: %s has neither a default time nor weekday overrides", name)
	}

	reachable := map[string]string{}
	if d.DefaultTime != "" {
		if _, err := parseClock(d.DefaultTime); err != nil {
			return fmt.Errorf("config: %s default: %w", name, err)
		}
		reachable[d.DefaultTime] = "default"
	}
	for day, t := range d.Weekdays {
		if !weekdayNames[day] {
			return fmt.Errorf("config: %s has unknown weekday %q, use lowercase names (monday..sunday)", name, day)
		}
		if _, err := parseClock(t); err != nil {
			return fmt.Errorf("config: %s %s: %w", name, day, err)
		}
		reachable[t] = day
	}

	for t, where := range reachable {
		if _, ok := d.TripIDs[t]; !ok {
			return fmt.Errorf("config: %s departure %s (%s) has no trip id", name, t, where)
		}
	}

	return nil
}

// Secrets are everything that must not live in the YAML file. Loaded
// from the process environment, optionally seeded from a .env file.
type Secrets struct {
	Email          string
	Password       string
	TelegramToken  string
	TelegramUserID int64
}

func LoadSecrets(envPath string) (*Secrets, error) {
	// A missing .env is fine: the variables may come from the real
	// environment (systemd unit, container runtime).
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("secrets: %w", err)
	}

	s := &Secrets{
		Email:         os.Getenv("FAREBOT_EMAIL"),
		Password:      os.Getenv("FAREBOT_PASSWORD"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
	}

	rawID := os.Getenv("TELEGRAM_USER_ID")
	missing := []string{}
	if s.Email == "" {
		missing = append(missing, "FAREBOT_EMAIL")
	}
	if s.Password == "" {
		missing = append(missing, "FAREBOT_PASSWORD")
	}
	if s.TelegramToken == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	if rawID == "" {
		missing = append(missing, "TELEGRAM_USER_ID")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("secrets: missing %v", missing)
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("secrets: TELEGRAM_USER_ID must be numeric: %w", err)
	}
	s.TelegramUserID = id

	return s, nil
}
