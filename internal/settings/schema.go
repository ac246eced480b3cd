package settings

// Setting keys registered by DefaultSchema.
const (
	KeyTheme         = "ui.theme"
	KeyFontSize      = "ui.font_size"
	KeyLanguage      = "ui.language"
	KeySampleRate    = "audio.sample_rate"
	KeyDefaultFormat = "audio.default_format"
	KeyVolume        = "audio.volume"
	KeyMaxJobs       = "processing.max_jobs"
	KeyMaxRetries    = "processing.max_retries"
	KeyWindowWidth   = "window.width"
	KeyWindowHeight  = "window.height"
	KeyCurrentTab    = "session.current_tab"
	KeySelectedFiles = "session.selected_files"
)

// DefaultSchema returns the application settings. Session keys are transient.
func DefaultSchema() []Definition {
	return []Definition{
		{
			Key:         KeyTheme,
			Default:     "dark",
			Persistent:  true,
			Validator:   OneOf("dark", "light", "system"),
			Description: "Interface color theme",
		},
		{
			Key:         KeyFontSize,
			Default:     12,
			Persistent:  true,
			Validator:   IntRange(8, 32),
			Description: "Interface font size in points",
		},
		{
			Key:         KeyLanguage,
			Default:     "en",
			Persistent:  true,
			Validator:   IsString,
			Description: "Interface language tag",
		},
		{
			Key:         KeySampleRate,
			Default:     44100,
			Persistent:  true,
			Validator:   OneOf(22050, 44100, 48000, 88200, 96000, 192000),
			Description: "Default output sample rate in Hz",
		},
		{
			Key:         KeyDefaultFormat,
			Default:     "wav",
			Persistent:  true,
			Validator:   OneOf("wav", "flac", "mp3", "ogg", "aiff"),
			Description: "Default export container",
		},
		{
			Key:         KeyVolume,
			Default:     0.8,
			Persistent:  true,
			Validator:   FloatRange(0, 1),
			Description: "Playback volume",
		},
		{
			Key:         KeyMaxJobs,
			Default:     4,
			Persistent:  true,
			Validator:   IntRange(1, 64),
			Description: "Concurrent processing jobs",
		},
		{
			Key:         KeyMaxRetries,
			Default:     3,
			Persistent:  true,
			Validator:   IntRange(0, 20),
			Description: "Retries allowed for a transient job failure",
		},
		{
			Key:         KeyWindowWidth,
			Default:     1280,
			Persistent:  true,
			Validator:   IntMin(400),
			Description: "Main window width in pixels",
		},
		{
			Key:         KeyWindowHeight,
			Default:     800,
			Persistent:  true,
			Validator:   IntMin(300),
			Description: "Main window height in pixels",
		},
		{
			Key:         KeyCurrentTab,
			Default:     "audio",
			Persistent:  false,
			Validator:   IsString,
			Description: "Tab selected in the current session",
		},
		{
			Key:         KeySelectedFiles,
			Default:     []string{},
			Persistent:  false,
			Validator:   IsStringList,
			Description: "Files selected in the current session",
		},
	}
}
