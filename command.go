package main

import (
	"errors"

	"github.com/edaniels/golog"
	"go.uber.org/zap"

	"github.com/seqsense/scancloud/config"
	"github.com/seqsense/scancloud/mat"
	"github.com/seqsense/scancloud/pcd"
	"github.com/seqsense/scancloud/pcd/feature"
	"github.com/seqsense/scancloud/pcd/filter"
	"github.com/seqsense/scancloud/pcd/filter/adaptive"
	"github.com/seqsense/scancloud/pcd/filter/voxelgrid"
	"github.com/seqsense/scancloud/pcd/format"
	"github.com/seqsense/scancloud/pcd/normal"
	"github.com/seqsense/scancloud/pcd/segmentation/extract"
	"github.com/seqsense/scancloud/pcd/storage/kdtree"
)

var errNoPointCloud = errors.New("no point cloud")

type commandContext struct {
	*editor
	cfg    *config.Config
	logger golog.Logger
}

func newCommandContext(cfg *config.Config, logger golog.Logger) *commandContext {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &commandContext{
		editor: newEditor(cfg.History.Max),
		cfg:    cfg,
		logger: logger,
	}
}

type cloudInfo struct {
	Points     int
	Min, Max   mat.Vec3
	Objects    int64
	Labels     int64
	Segmented  bool
	HasNormals bool
}

func (c *commandContext) current() (*pcd.PointCloud, error) {
	pc, _, ok := c.PointCloud()
	if !ok {
		return nil, errNoPointCloud
	}
	return pc, nil
}

// Load reads a point cloud. Object and label ids are kept if the file is ISM_BIN.
// Current cloud is kept on failure.
func (c *commandContext) Load(path string) error {
	if format.KindOf(path) == format.KindISM {
		pc, seg, err := format.LoadISM(path, format.WithLogger(c.logger))
		if err != nil {
			return err
		}
		c.SetPointCloud(pc, seg)
		return nil
	}
	pc, err := format.Load(path, format.WithLogger(c.logger))
	if err != nil {
		return err
	}
	c.SetPointCloud(pc, nil)
	return nil
}

func (c *commandContext) Save(path string) error {
	pc, err := c.current()
	if err != nil {
		return err
	}
	opts := []format.Option{
		format.WithCompression(c.cfg.Output.Compress),
		format.WithLogger(c.logger),
	}
	if format.KindOf(path) == format.KindISM {
		return format.SaveISM(pc, c.seg, path, opts...)
	}
	return format.Save(pc, path, opts...)
}

func (c *commandContext) Info() (*cloudInfo, error) {
	pc, err := c.current()
	if err != nil {
		return nil, err
	}
	b := pc.AABB()
	info := &cloudInfo{
		Points:    pc.NumPoints(),
		Objects:   pc.ObjectCount(),
		Labels:    pc.LabelCount(),
		Segmented: c.seg != nil,
	}
	if !b.IsNull() {
		info.Min, info.Max = b.Min, b.Max
	}
	normals := pc.Normals()
	for i := 0; i < normals.Len(); i++ {
		if !normals.Vec3At(i).IsZero() {
			info.HasNormals = true
			break
		}
	}
	return info, nil
}

// EstimateNormals computes normals of a copy of the current cloud and makes it current.
func (c *commandContext) EstimateNormals() (*normal.Report, error) {
	pc, err := c.current()
	if err != nil {
		return nil, err
	}
	opts := c.cfg.NormalOptions()
	opts.Logger = c.logger

	out := pc.Clone()
	kdt := kdtree.NewFromCloud(out)
	report, err := normal.New(opts).Estimate(out, kdt)
	if err != nil {
		return report, err
	}
	c.SetPointCloud(out, c.seg)
	// Normals do not move points so the index stays valid.
	c.kdt = kdt
	return report, nil
}

func (c *commandContext) sampler() filter.Sampler {
	if v := c.cfg.Downsample.Voxel; v > 0 {
		return voxelgrid.New(v)
	}
	opts := c.cfg.AdaptiveOptions()
	opts.Logger = c.logger
	return adaptive.NewWithIndex(opts, c.index())
}

// Downsample removes points and returns the number of points before and after.
func (c *commandContext) Downsample() (int, int, error) {
	pc, err := c.current()
	if err != nil {
		return 0, 0, err
	}
	kept, err := c.sampler().Sample(pc)
	if err != nil {
		return 0, 0, err
	}
	var seg *pcd.Segmentation
	if c.seg != nil {
		seg = c.seg.Subset(kept)
	}
	c.SetPointCloud(pc.Subset(kept), seg)
	return pc.NumPoints(), len(kept), nil
}

func (c *commandContext) ExtractObjects(dir string) (*extract.Report, error) {
	pc, err := c.current()
	if err != nil {
		return nil, err
	}
	return extract.Objects(pc, c.seg, dir, c.extractOptions())
}

func (c *commandContext) ExtractLabels(dir string) (*extract.Report, error) {
	pc, err := c.current()
	if err != nil {
		return nil, err
	}
	return extract.Labels(pc, c.seg, dir, c.extractOptions())
}

func (c *commandContext) extractOptions() extract.Options {
	return extract.Options{
		Compress: c.cfg.Output.Compress,
		Logger:   c.logger,
	}
}

func (c *commandContext) SaveFeatures(path string) error {
	pc, err := c.current()
	if err != nil {
		return err
	}
	opts := c.cfg.FeatureOptions()
	opts.Logger = c.logger
	return feature.SaveFeatures(pc, path, opts)
}

// Clear removes all points of the current cloud. Object and label counts are kept.
func (c *commandContext) Clear() error {
	pc, err := c.current()
	if err != nil {
		return err
	}
	out := pc.Clone()
	out.Clear()
	var seg *pcd.Segmentation
	if c.seg != nil {
		seg = c.seg.Subset(nil)
	}
	c.SetPointCloud(out, seg)
	return nil
}
