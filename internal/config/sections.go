package config

import "time"

// BuildConfig configures the build command and how it is run.
type BuildConfig struct {
	// Command is the build command line.
	Command string

	// ConfigType replaces ${CONFIGURATION_TYPE} in Command.
	ConfigType string

	// Directory is the working directory of the build.
	Directory string

	// Timeout bounds the build. Zero means no limit.
	Timeout time.Duration

	// KillOnTimeout kills the build when Timeout fires.
	KillOnTimeout bool

	// Encoding names the encoding of the build output ("utf-8", "none", or
	// an IANA charset name).
	Encoding string

	// UseLaunchers collects launcher fragments instead of scraping output.
	UseLaunchers bool

	// LaunchDir is the launcher fragment directory.
	LaunchDir string

	// LogFile receives the raw build output.
	LogFile string
}

// ScrapeConfig configures quotas and context.
type ScrapeConfig struct {
	MaxErrors   int
	MaxWarnings int
	PreContext  int
	PostContext int
}

// PatternsConfig holds project classification rules.
type PatternsConfig struct {
	ErrorMatch       []string
	ErrorException   []string
	WarningMatch     []string
	WarningException []string
}

// PathsConfig names the trees shortened in reported text.
type PathsConfig struct {
	SourceDir string
	BuildDir  string
}

// ReportConfig configures report output.
type ReportConfig struct {
	// Path is the standalone report file. Empty writes the Build element
	// to standard output.
	Path string

	Site        string
	BuildName   string
	SnippetsDir string
}

// LoggingConfig configures diagnostic logging.
type LoggingConfig struct {
	Level string
	JSON  bool
}

// Config is the decoded configuration.
type Config struct {
	Build    BuildConfig
	Scrape   ScrapeConfig
	Patterns PatternsConfig
	Paths    PathsConfig
	Report   ReportConfig
	Logging  LoggingConfig

	// Unknown lists project file keys that no setting reads.
	Unknown []string
}

func (d *decoder) build() BuildConfig {
	return BuildConfig{
		Command:       d.getString("build.command"),
		ConfigType:    d.getString("build.configType"),
		Directory:     d.getString("build.directory"),
		Timeout:       d.getDuration("build.timeout"),
		KillOnTimeout: d.getBool("build.killOnTimeout"),
		Encoding:      d.getString("build.encoding"),
		UseLaunchers:  d.getBool("build.useLaunchers"),
		LaunchDir:     d.getString("build.launchDir"),
		LogFile:       d.getString("build.logFile"),
	}
}

func (d *decoder) scrape() ScrapeConfig {
	return ScrapeConfig{
		MaxErrors:   d.getCount("scrape.maxErrors"),
		MaxWarnings: d.getCount("scrape.maxWarnings"),
		PreContext:  d.getCount("scrape.preContext"),
		PostContext: d.getCount("scrape.postContext"),
	}
}

func (d *decoder) patterns() PatternsConfig {
	return PatternsConfig{
		ErrorMatch:       d.getStringList("patterns.errorMatch"),
		ErrorException:   d.getStringList("patterns.errorException"),
		WarningMatch:     d.getStringList("patterns.warningMatch"),
		WarningException: d.getStringList("patterns.warningException"),
	}
}

func (d *decoder) paths() PathsConfig {
	return PathsConfig{
		SourceDir: d.getString("paths.sourceDir"),
		BuildDir:  d.getString("paths.buildDir"),
	}
}

func (d *decoder) report() ReportConfig {
	return ReportConfig{
		Path:        d.getString("report.path"),
		Site:        d.getString("report.site"),
		BuildName:   d.getString("report.buildName"),
		SnippetsDir: d.getString("report.snippetsDir"),
	}
}

func (d *decoder) logging() LoggingConfig {
	return LoggingConfig{
		Level: d.getString("logging.level"),
		JSON:  d.getBool("logging.json"),
	}
}
