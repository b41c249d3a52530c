package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string
		ShutdownTimeout time.Duration
	}

	BrowserConfig struct {
		AppURL        string
		Zoom          string
		Headless      bool
		ExecPath      string
		ScreenshotDir string
	}

	// TimingConfig holds every wait used while driving the remote page.
	// RowTimeout must stay much shorter than ElementTimeout: it is the fast
	// "student not in this class" check.
	TimingConfig struct {
		ElementTimeout      time.Duration
		RowTimeout          time.Duration
		SettleDelay         time.Duration
		NotebookSettleDelay time.Duration
		RefreshPause        time.Duration
		LookupAttempts      int
	}

	// LocatorConfig is the fixed contract with the remote web application.
	LocatorConfig struct {
		SearchInput    string
		ResultRow      string
		OptionTemplate string // fmt pattern taking the option value, relative to a column cell

		ArrivalColumn string
		ArrivalOnTime string

		ModeColumn  string
		ModeOffline string
		ModeOnline  string

		NotebookColumn   string
		NotebookTheory   string
		NotebookPractice string
	}

	ReportConfig struct {
		EmailTo   string
		FromEmail string
	}

	Config struct {
		Debug          bool
		TestMode       bool
		AppName        string
		Build          string
		Env            string
		Language       string
		LogFile        string
		RollbarToken   string
		SendgridApiKey string

		Server   ServerConfig
		Browser  BrowserConfig
		Timing   TimingConfig
		Locators LocatorConfig
		Report   ReportConfig
	}
)

var Conf *Config

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Diem Danh")
	v.SetDefault("build", "dev")
	v.SetDefault("language", "en")
	v.SetDefault("logFile", "diemdanh.log")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.address", "127.0.0.1:8765")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("browser.appURL", "http://quanly.bgo.edu.vn/")
	v.SetDefault("browser.zoom", "67%")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.execPath", "")
	v.SetDefault("browser.screenshotDir", ".")

	v.SetDefault("timing.elementTimeout", 20*time.Second)
	v.SetDefault("timing.rowTimeout", 500*time.Millisecond)
	v.SetDefault("timing.settleDelay", 1*time.Second)
	v.SetDefault("timing.notebookSettleDelay", 2*time.Second)
	v.SetDefault("timing.refreshPause", 3*time.Second)
	v.SetDefault("timing.lookupAttempts", 3)

	v.SetDefault("locators.searchInput", "/html/body/bgo-root/div/div/bgo-main-layout/bgo-class-attendances/div/div[4]/bgo-grid/div/div[1]/div[6]/div/input")
	v.SetDefault("locators.resultRow", "//div[@role='row' and contains(@class, 'ag-row') and not(contains(@class, 'ag-row-header'))]")
	v.SetDefault("locators.optionTemplate", "//option[@value=%q]")
	v.SetDefault("locators.arrivalColumn", "//div[@col-id='arrivalStatus']")
	v.SetDefault("locators.arrivalOnTime", "ON_TIME")
	v.SetDefault("locators.modeColumn", "//div[@col-id='4']")
	v.SetDefault("locators.modeOffline", "1")
	v.SetDefault("locators.modeOnline", "2")
	v.SetDefault("locators.notebookColumn", "//div[@col-id='10']")
	v.SetDefault("locators.notebookTheory", "1")
	v.SetDefault("locators.notebookPractice", "2")

	v.SetDefault("report.emailTo", "")
	v.SetDefault("report.fromEmail", "noreply@localhost")

	env := os.Getenv("ENV") // DEV (local; default), TEST, PROD
	switch strings.ToUpper(env) {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	env = strings.ToUpper(env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:          v.GetBool("debug"),
		TestMode:       v.GetBool("testMode"),
		AppName:        v.GetString("appName"),
		Build:          v.GetString("build"),
		Env:            env,
		Language:       v.GetString("language"),
		LogFile:        v.GetString("logFile"),
		RollbarToken:   v.GetString("rollbarToken"),
		SendgridApiKey: v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Browser: BrowserConfig{
			AppURL:        v.GetString("browser.appURL"),
			Zoom:          v.GetString("browser.zoom"),
			Headless:      v.GetBool("browser.headless"),
			ExecPath:      v.GetString("browser.execPath"),
			ScreenshotDir: v.GetString("browser.screenshotDir"),
		},
		Timing: TimingConfig{
			ElementTimeout:      v.GetDuration("timing.elementTimeout"),
			RowTimeout:          v.GetDuration("timing.rowTimeout"),
			SettleDelay:         v.GetDuration("timing.settleDelay"),
			NotebookSettleDelay: v.GetDuration("timing.notebookSettleDelay"),
			RefreshPause:        v.GetDuration("timing.refreshPause"),
			LookupAttempts:      v.GetInt("timing.lookupAttempts"),
		},
		Locators: LocatorConfig{
			SearchInput:      v.GetString("locators.searchInput"),
			ResultRow:        v.GetString("locators.resultRow"),
			OptionTemplate:   v.GetString("locators.optionTemplate"),
			ArrivalColumn:    v.GetString("locators.arrivalColumn"),
			ArrivalOnTime:    v.GetString("locators.arrivalOnTime"),
			ModeColumn:       v.GetString("locators.modeColumn"),
			ModeOffline:      v.GetString("locators.modeOffline"),
			ModeOnline:       v.GetString("locators.modeOnline"),
			NotebookColumn:   v.GetString("locators.notebookColumn"),
			NotebookTheory:   v.GetString("locators.notebookTheory"),
			NotebookPractice: v.GetString("locators.notebookPractice"),
		},
		Report: ReportConfig{
			EmailTo:   v.GetString("report.emailTo"),
			FromEmail: v.GetString("report.fromEmail"),
		},
	}
	Conf = conf
	return conf
}
