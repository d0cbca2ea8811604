// Package config loads pipeline settings from YAML.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/seqsense/scancloud/mat"
	"github.com/seqsense/scancloud/pcd"
	"github.com/seqsense/scancloud/pcd/feature"
	"github.com/seqsense/scancloud/pcd/filter/adaptive"
	"github.com/seqsense/scancloud/pcd/normal"
)

type Normals struct {
	K           int        `yaml:"k"`
	Orientation string     `yaml:"orientation"`
	Viewpoint   [3]float32 `yaml:"viewpoint"`
	Workers     int        `yaml:"workers"`
}

type Downsample struct {
	K                  int     `yaml:"k"`
	CurvatureThreshold float32 `yaml:"curvature_threshold"`
	Radius             float32 `yaml:"radius"`
	// Voxel selects uniform voxel grid sampling of given leaf size instead of
	// the adaptive one if positive.
	Voxel float32 `yaml:"voxel"`
}

type Features struct {
	K int `yaml:"k"`
}

type Output struct {
	Compress bool `yaml:"compress"`
}

type History struct {
	Max int `yaml:"max"`
}

type Config struct {
	Normals    Normals    `yaml:"normals"`
	Downsample Downsample `yaml:"downsample"`
	Features   Features   `yaml:"features"`
	Output     Output     `yaml:"output"`
	History    History    `yaml:"history"`
}

func Default() *Config {
	return &Config{
		Normals: Normals{
			K:           feature.DefaultK,
			Orientation: normal.OrientMST.String(),
		},
		Downsample: Downsample{
			K:                  feature.DefaultK,
			CurvatureThreshold: 0.02,
			Radius:             0.05,
		},
		Features: Features{
			K: feature.DefaultK,
		},
		History: History{
			Max: 4,
		},
	}
}

// Load reads YAML file at path over the default values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &pcd.IOError{Op: "read", Path: path, Err: err}
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Normals.K < 2 {
		return errors.Wrapf(pcd.ErrOutOfRange, "normals.k=%d", c.Normals.K)
	}
	if _, err := normal.ParseOrientation(c.Normals.Orientation); err != nil {
		return errors.Wrap(err, "normals.orientation")
	}
	if c.Downsample.Voxel < 0 {
		return errors.Wrapf(pcd.ErrOutOfRange, "downsample.voxel=%v", c.Downsample.Voxel)
	}
	if err := c.AdaptiveOptions().Validate(); err != nil {
		return errors.Wrap(err, "downsample")
	}
	if c.Features.K < 2 {
		return errors.Wrapf(pcd.ErrOutOfRange, "features.k=%d", c.Features.K)
	}
	if c.History.Max < 1 {
		return errors.Wrapf(pcd.ErrOutOfRange, "history.max=%d", c.History.Max)
	}
	return nil
}

func (c *Config) NormalOptions() normal.Options {
	o := normal.DefaultOptions()
	o.K = c.Normals.K
	o.Workers = c.Normals.Workers
	o.Orientation, _ = normal.ParseOrientation(c.Normals.Orientation)
	o.Viewpoint = mat.Vec3(c.Normals.Viewpoint)
	return o
}

func (c *Config) AdaptiveOptions() adaptive.Options {
	return adaptive.Options{
		K:                  c.Downsample.K,
		CurvatureThreshold: c.Downsample.CurvatureThreshold,
		Radius:             c.Downsample.Radius,
		Workers:            c.Normals.Workers,
	}
}

func (c *Config) FeatureOptions() feature.Options {
	o := feature.DefaultOptions()
	o.K = c.Features.K
	o.Workers = c.Normals.Workers
	return o
}
