package config

import (
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag describes one CLI flag and the config key it overrides. Commands
// register flags from a FlagSet by key, so --top-k means the same thing on
// every command that takes it.
type Flag struct {
	Name        string
	Shorthand   string
	ViperKey    string
	Description string
}

// FlagSet maps registry keys to flag definitions.
type FlagSet map[string]Flag

// Keys returns the registry keys of fs in a stable order.
func (fs FlagSet) Keys() []string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flag registry keys.
const (
	FlagListen          = "listen"
	FlagStorageDriver   = "storage-driver"
	FlagSQLite          = "sqlite"
	FlagPostgres        = "postgres"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagSynthesisProv   = "synthesis-provider"
	FlagSynthesisTgt    = "synthesis-target"
	FlagSynthesisModel  = "synthesis-model"
	FlagTopK            = "top-k"
	FlagWorkers         = "workers"
	FlagWatch           = "watch"
	FlagGitHubToken     = "github-token"
	FlagAPITarget       = "api-target"
	FlagLogFormat       = "log-format"
)

// AddStringFlag registers the string flag fs[key] on cmd. Its default is the
// built-in default of the config key it maps to.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	addFlag(cmd, fs, key, func(flags *pflag.FlagSet, def Flag, defaults *viper.Viper) {
		flags.StringVarP(target, def.Name, def.Shorthand, defaults.GetString(def.ViperKey), def.Description)
	})
}

// AddUintFlag registers the uint flag fs[key] on cmd.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, key string, target *uint) {
	addFlag(cmd, fs, key, func(flags *pflag.FlagSet, def Flag, defaults *viper.Viper) {
		flags.UintVarP(target, def.Name, def.Shorthand, defaults.GetUint(def.ViperKey), def.Description)
	})
}

// AddBoolFlag registers the bool flag fs[key] on cmd.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	addFlag(cmd, fs, key, func(flags *pflag.FlagSet, def Flag, defaults *viper.Viper) {
		flags.BoolVarP(target, def.Name, def.Shorthand, defaults.GetBool(def.ViperKey), def.Description)
	})
}

func addFlag(cmd *cobra.Command, fs FlagSet, key string, register func(*pflag.FlagSet, Flag, *viper.Viper)) {
	def, ok := fs[key]
	if !ok {
		return
	}
	register(cmd.Flags(), def, defaultsViper())
}

// BindRegisteredFlags binds the flags named by keys to their viper keys so
// that an explicitly set flag wins over env, file and defaults. Keys missing
// from fs or not registered on cmd are skipped.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		def, ok := fs[key]
		if !ok {
			continue
		}
		if f := cmd.Flags().Lookup(def.Name); f != nil {
			_ = v.BindPFlag(def.ViperKey, f)
		}
	}
}

// defaultsViper holds only the built-in defaults.
func defaultsViper() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
