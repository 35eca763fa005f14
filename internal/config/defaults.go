package config

const (
	defaultLogDir                = "~/.local/share/vidqc/logs"
	defaultToolsDir              = "~/.local/share/vidqc/tools"
	defaultStateDir              = "~/.local/share/vidqc/state"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultMuteThresholdDB       = -50
	defaultMuteMinDuration       = 1.0
	defaultShortShotMinFrames    = 5
	defaultSceneThreshold        = 0.4
	defaultBlackPictureThreshold = 0.99
	defaultBlackPixelThreshold   = 0.98
	defaultPeakDBFS              = -1.5
	defaultPeakMaxDuration       = 0.2
	defaultDownloadURL           = "https://www.gyan.dev/ffmpeg/builds/ffmpeg-release-essentials.zip"
	defaultBuildDirPattern       = "ffmpeg-*-essentials_build"
	defaultBuildDirName          = "ffmpeg_build"
	defaultDownloadTimeout       = 600
	defaultBundleOutputDir       = "dist"
	defaultArtifactName          = "vidqc"
	defaultBundleGOOS            = "windows"
	defaultBundleGOARCH          = "amd64"
	defaultBundlePackage         = "./cmd/vidqc"
	defaultGoBinary              = "go"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			ToolsDir: defaultToolsDir,
			StateDir: defaultStateDir,
		},
		Thresholds: Thresholds{
			MuteThresholdDB:    defaultMuteThresholdDB,
			MuteMinDuration:    defaultMuteMinDuration,
			ShortShotMinFrames: defaultShortShotMinFrames,
			SceneThreshold:     defaultSceneThreshold,
			BlackPictureRatio:  defaultBlackPictureThreshold,
			BlackPixelRatio:    defaultBlackPixelThreshold,
			PeakDBFS:           defaultPeakDBFS,
			PeakMaxDuration:    defaultPeakMaxDuration,
		},
		Provision: Provision{
			DownloadURL:     defaultDownloadURL,
			BuildDirPattern: defaultBuildDirPattern,
			BuildDirName:    defaultBuildDirName,
			DownloadTimeout: defaultDownloadTimeout,
		},
		Bundle: Bundle{
			OutputDir:    defaultBundleOutputDir,
			ArtifactName: defaultArtifactName,
			GOOS:         defaultBundleGOOS,
			GOARCH:       defaultBundleGOARCH,
			Package:      defaultBundlePackage,
			GoBinary:     defaultGoBinary,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
