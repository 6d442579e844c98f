package util

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// CoordConfig configures the coordinator process and the jobs it runs.
type CoordConfig struct {
	ClientAPIListenAddr     string // gRPC clients will use it to contact coord
	ExternalAPIListenAddr   string // HTTP + grpc-web endpoint
	NumWorkers              uint32
	StepsBetweenCheckpoints uint64 // 0 disables checkpoints
	CheckpointPath          string
	MaxSuperSteps           uint64
	StrictParity            bool
	Verbose                 bool
	TLSCertPath             string // TLS is used when both paths are set
	TLSKeyPath              string
	Graph                   GraphConfig
}

// GraphConfig selects where a stored graph is read from.
type GraphConfig struct {
	Source    string // file, sql, dynamodb or mongodb
	Path      string // edge list for the file source
	Driver    string // sqlite3, sqlserver or mysql
	DSN       string
	TableName string
	Region    string
}

type ClientConfig struct {
	ClientId  string
	CoordAddr string
}

const (
	ENV_DSN         = "BAGEL_DSN"
	ENV_MONGO_URI   = "BAGEL_MONGO_URI"
	ENV_NUM_WORKERS = "BAGEL_NUM_WORKERS"
)

func ReadJSONConfig(filename string, config interface{}) error {
	configData, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}
	err = json.Unmarshal(configData, config)
	if err != nil {
		return err
	}
	return nil
}

func WriteJSONConfig(filename string, config interface{}) error {
	configData, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(filename, configData, 0644)
}

func DefaultCoordConfig() CoordConfig {
	return CoordConfig{
		ClientAPIListenAddr:   "127.0.0.1:50051",
		ExternalAPIListenAddr: "127.0.0.1:8080",
		NumWorkers:            2,
		MaxSuperSteps:         100,
		CheckpointPath:        "checkpoints.db",
		Graph: GraphConfig{
			Source: "file",
			Path:   "graphs",
		},
	}
}

// ReadCoordConfig reads a coord config over the defaults and overlays values
// found in the environment (optionally populated from envFile).
func ReadCoordConfig(filename string, envFile string) (CoordConfig, error) {
	config := DefaultCoordConfig()
	if filename != "" {
		if err := ReadJSONConfig(filename, &config); err != nil {
			return CoordConfig{}, err
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return CoordConfig{}, err
		}
	}
	if dsn := os.Getenv(ENV_DSN); dsn != "" {
		config.Graph.DSN = dsn
	}
	if n := os.Getenv(ENV_NUM_WORKERS); n != "" {
		numWorkers, err := strconv.ParseUint(n, 10, 32)
		if err != nil {
			return CoordConfig{}, fmt.Errorf("invalid %s %q: %v", ENV_NUM_WORKERS, n, err)
		}
		config.NumWorkers = uint32(numWorkers)
	}
	if config.NumWorkers == 0 {
		config.NumWorkers = 1
	}
	return config, nil
}

func CheckErr(err error, errfmsg string, fargs ...interface{}) {
	if err != nil {
		fmt.Fprintf(os.Stderr, errfmsg, fargs...)
		os.Exit(1)
	}
}
