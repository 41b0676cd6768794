package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sitovia/briefs/importer"
)

type Config struct {
	Addr        string
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	Debug       bool

	Origin        string
	Locale        string
	Relays        []string
	ImportTimeout time.Duration
	SubmitDelay   time.Duration
	RedisURL      string
	AdminUser     string
	AdminPassword string
}

// file mirrors the flags that may be set from a YAML file.
type file struct {
	Host          *string  `yaml:"host"`
	Port          *uint    `yaml:"port"`
	DBUrl         *string  `yaml:"db_url"`
	TokenSecret   *string  `yaml:"token_secret"`
	TokenTTL      *uint    `yaml:"token_ttl"`
	Debug         *bool    `yaml:"debug"`
	Origin        *string  `yaml:"origin"`
	Locale        *string  `yaml:"locale"`
	Relays        []string `yaml:"relays"`
	ImportTimeout *string  `yaml:"import_timeout"`
	SubmitDelay   *string  `yaml:"submit_delay"`
	RedisURL      *string  `yaml:"redis_url"`
	AdminUser     *string  `yaml:"admin_user"`
	AdminPassword *string  `yaml:"admin_password"`
}

func ParseFlags() (Config, error) {
	return Parse(flag.CommandLine, os.Args[1:])
}

// Parse reads args into a Config. Values from the -config YAML file apply
// first; flags given explicitly on the command line win over them.
func Parse(fs *flag.FlagSet, args []string) (cfg Config, err error) {
	var host string
	fs.StringVar(&host, "host", "0.0.0.0", "listen host name")
	var port uint
	fs.UintVar(&port, "port", 80, "listen port number")
	fs.StringVar(&cfg.DBUrl, "db-url", "briefs.sqlite", "path to SQLite3 DB file")
	fs.StringVar(&cfg.TokenSecret, "token-secret", "", "secret key for token encryption and decryption")
	var ttl uint
	fs.UintVar(&ttl, "token-ttl", 120, "token TTL in seconds")
	fs.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")

	fs.StringVar(&cfg.Origin, "origin", "", "public origin used in form links (default derived from host and port)")
	fs.StringVar(&cfg.Locale, "locale", "en", "locale segment of public form links")
	var relays string
	fs.StringVar(&relays, "relays", strings.Join(importer.DefaultRelays, ","), "comma separated relay templates, {url} is replaced by the form address")
	fs.DurationVar(&cfg.ImportTimeout, "import-timeout", 15*time.Second, "timeout of a single relay request")
	fs.DurationVar(&cfg.SubmitDelay, "submit-delay", 0, "simulated delay before a submission is recorded")
	fs.StringVar(&cfg.RedisURL, "redis-url", "", "store drafts and forms in Redis instead of SQLite")
	fs.StringVar(&cfg.AdminUser, "admin-user", "", "create or update this admin user at startup")
	fs.StringVar(&cfg.AdminPassword, "admin-password", "", "password of -admin-user")
	var configFile string
	fs.StringVar(&configFile, "config", "", "optional YAML file with default values")

	if err = fs.Parse(args); err != nil {
		return
	}

	if configFile != "" {
		explicit := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

		var overlay file
		overlay, err = readFile(configFile)
		if err != nil {
			return
		}
		err = overlay.apply(explicit, &cfg, &host, &port, &ttl, &relays)
		if err != nil {
			return
		}
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second
	cfg.Relays = splitRelays(relays)
	if cfg.Origin == "" {
		cfg.Origin = cfg.Url()
	}
	cfg.Origin = strings.TrimRight(cfg.Origin, "/")

	switch {
	case cfg.TokenSecret == "":
		err = errors.New("missing parameter -token-secret")
	case (cfg.AdminUser == "") != (cfg.AdminPassword == ""):
		err = errors.New("-admin-user and -admin-password go together")
	case len(cfg.Relays) == 0:
		err = errors.New("at least one relay is required")
	}

	return
}

func readFile(path string) (f file, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("config.read: %w", err)
	}
	if err = yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("config.parse %s: %w", path, err)
	}
	return f, nil
}

func (f file) apply(explicit map[string]bool, cfg *Config, host *string, port, ttl *uint, relays *string) error {
	setString := func(name string, from *string, to *string) {
		if from != nil && !explicit[name] {
			*to = *from
		}
	}
	setDuration := func(name string, from *string, to *time.Duration) error {
		if from == nil || explicit[name] {
			return nil
		}
		d, err := time.ParseDuration(*from)
		if err != nil {
			return fmt.Errorf("config.%s: %w", name, err)
		}
		*to = d
		return nil
	}

	setString("host", f.Host, host)
	setString("db-url", f.DBUrl, &cfg.DBUrl)
	setString("token-secret", f.TokenSecret, &cfg.TokenSecret)
	setString("origin", f.Origin, &cfg.Origin)
	setString("locale", f.Locale, &cfg.Locale)
	setString("redis-url", f.RedisURL, &cfg.RedisURL)
	setString("admin-user", f.AdminUser, &cfg.AdminUser)
	setString("admin-password", f.AdminPassword, &cfg.AdminPassword)
	if f.Port != nil && !explicit["port"] {
		*port = *f.Port
	}
	if f.TokenTTL != nil && !explicit["token-ttl"] {
		*ttl = *f.TokenTTL
	}
	if f.Debug != nil && !explicit["debug"] {
		cfg.Debug = *f.Debug
	}
	if f.Relays != nil && !explicit["relays"] {
		*relays = strings.Join(f.Relays, ",")
	}
	if err := setDuration("import-timeout", f.ImportTimeout, &cfg.ImportTimeout); err != nil {
		return err
	}
	return setDuration("submit-delay", f.SubmitDelay, &cfg.SubmitDelay)
}

func splitRelays(s string) []string {
	var relays []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			relays = append(relays, r)
		}
	}
	return relays
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
