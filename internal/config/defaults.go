package config

const (
	defaultWatchDir     = "~/.local/share/labelpress/inbox"
	defaultOutputDir    = "~/.local/share/labelpress/labels"
	defaultLogDir       = "~/.local/share/labelpress/logs"
	defaultBind         = "127.0.0.1:5555"
	defaultConnect      = "127.0.0.1:5555"
	defaultDialTimeout  = 2
	defaultMaxAttempts  = 5
	defaultRetryDelayMS = 500
	defaultWorkerCount  = 4
	defaultQueueDepth   = 10
	defaultDrainTimeout = 30

	// 6in x 4in at 300 DPI, the label geometry expected by the printer.
	defaultLabelWidth  = 1800
	defaultLabelHeight = 1200
	defaultLabelDPI    = 300

	defaultRasterizer = "pdftoppm"
	defaultInfoTool   = "pdfinfo"
	defaultPrinter    = "DYMO LabelWriter 4XL"
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"
)

var defaultExtensions = []string{".pdf"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:  defaultWatchDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Transport: Transport{
			Bind:        defaultBind,
			Connect:     defaultConnect,
			DialTimeout: defaultDialTimeout,
		},
		Sender: Sender{
			MaxAttempts:  defaultMaxAttempts,
			RetryDelayMS: defaultRetryDelayMS,
			Extensions:   append([]string{}, defaultExtensions...),
		},
		Workers: Workers{
			Count:        defaultWorkerCount,
			QueueDepth:   defaultQueueDepth,
			DrainTimeout: defaultDrainTimeout,
		},
		Label: Label{
			Width:  defaultLabelWidth,
			Height: defaultLabelHeight,
			DPI:    defaultLabelDPI,
		},
		Render: Render{
			Rasterizer: defaultRasterizer,
			InfoTool:   defaultInfoTool,
		},
		Printing: Printing{
			Printer: defaultPrinter,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
