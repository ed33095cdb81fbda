package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"isocontour/internal/models"
	"isocontour/pkg/config"
	"isocontour/pkg/reconstruction"
	"isocontour/pkg/visualization"
	"isocontour/pkg/volume"
)

// parseIsovalues parses a comma separated list of numbers.
func parseIsovalues(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad isovalue %q: %w", f, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no isovalues in %q", s)
	}
	return out, nil
}

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing numbered 2D slice images")
	rawFile := flag.String("raw", "", "Headerless raw volume file")
	rawShape := flag.String("shape", "", "Raw volume shape, e.g. 256x256x128")
	rawKind := flag.String("kind", "uint16", "Raw sample type (uint8, int16, float32, ...)")
	bigEndian := flag.Bool("big-endian", false, "Raw samples are big-endian")
	phantomName := flag.String("phantom", "", "Synthetic volume instead of input files (sphere, hot, sdf)")
	phantomSize := flag.Int("size", 64, "Phantom samples per axis")
	isoList := flag.String("iso", "", "Comma separated isovalues (default from config)")
	outputFile := flag.String("output", "output.stl", "Output STL filename")
	ascii := flag.Bool("ascii", false, "Write ASCII STL instead of binary")
	configPath := flag.String("config", "isocontour.yaml", "YAML configuration file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	normals := flag.Bool("normals", true, "Compute per-vertex normals")
	lowerInside := flag.Bool("lower-inside", false, "Treat values below the isovalue as inside")
	sliceGap := flag.Float64("gap", 0, "Inter-slice gap in mm (overrides the configured Z spacing)")
	smooth := flag.Float64("smooth", 0, "In-plane Gaussian smoothing sigma in voxels")
	interpolate := flag.Int("interpolate", 1, "Subdivide each slice gap into this many steps by kriging")
	numCores := flag.Int("cores", 0, "Number of isovalues extracted in parallel (default: all CPUs)")
	extractSlices := flag.Bool("extract-slices", false, "Extract and save slices of the contoured volume along all axes")
	slicesDir := flag.String("slices-dir", "", "Directory to save extracted slices")
	verbose := flag.Bool("verbose", true, "Print progress messages")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" && *rawFile == "" && *phantomName == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags given on the command line override the configuration file.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if *isoList != "" {
		if cfg.Contour.Isovalues, err = parseIsovalues(*isoList); err != nil {
			log.Fatalf("Invalid -iso: %v", err)
		}
	}
	if set["ascii"] {
		cfg.Output.ASCII = *ascii
	}
	if set["normals"] {
		cfg.Contour.FindNormals = *normals
	}
	if set["lower-inside"] {
		cfg.Contour.LowerInside = *lowerInside
	}
	if set["gap"] {
		cfg.Volume.Spacing.Z = *sliceGap
	}
	if set["smooth"] {
		cfg.Volume.Smooth = *smooth
	}
	if set["interpolate"] {
		cfg.Interpolation.Factor = *interpolate
	}
	if set["cores"] {
		cfg.Processing.NumCores = *numCores
	}
	if set["extract-slices"] {
		cfg.Output.ExtractSlices = *extractSlices
	}
	if *slicesDir != "" {
		cfg.Output.SlicesDir = *slicesDir
	}
	if set["verbose"] {
		cfg.Output.Verbose = *verbose
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}
	krigingParams, err := cfg.KrigingParams()
	if err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	// Initialize reconstruction parameters
	params := &reconstruction.Params{
		InputDir:      *inputDir,
		RawFile:       *rawFile,
		Phantom:       *phantomName,
		PhantomSize:   *phantomSize,
		OutputFile:    *outputFile,
		ASCII:         cfg.Output.ASCII,
		NumCores:      cfg.Processing.NumCores,
		Spacing:       cfg.Volume.Spacing,
		Origin:        cfg.Volume.Origin,
		Blind:         cfg.Volume.Blind,
		Smooth:        cfg.Volume.Smooth,
		Interpolate:   cfg.Interpolation.Factor,
		Kriging:       krigingParams,
		Isovalues:     cfg.Contour.Isovalues,
		LowerInside:   cfg.Contour.LowerInside,
		FindNormals:   cfg.Contour.FindNormals,
		HistogramBins: cfg.Contour.HistogramBins,
	}
	if *rawFile != "" {
		if params.RawShape, err = volume.ParseShape(*rawShape); err != nil {
			log.Fatalf("Invalid -shape: %v", err)
		}
		if params.RawKind, err = volume.ParseKind(*rawKind); err != nil {
			log.Fatalf("Invalid -kind: %v", err)
		}
		params.RawOrder = binary.ByteOrder(binary.LittleEndian)
		if *bigEndian {
			params.RawOrder = binary.BigEndian
		}
	}

	fmt.Println("================================")
	fmt.Println("ISOSURFACE EXTRACTION BY MARCHING CUBES")
	fmt.Println("================================")

	// Create reconstructor instance
	reconstructor := reconstruction.NewReconstructor(params)
	if cfg.Output.Verbose {
		reconstructor.SetLogger(func(format string, args ...any) { fmt.Printf(format, args...) })
	}

	// Run the reconstruction pipeline
	startTime := time.Now()
	if err := reconstructor.Process(); err != nil {
		log.Fatalf("Reconstruction failed: %v", err)
	}
	processingTime := time.Since(startTime)

	metrics := reconstructor.GetMetrics()
	fmt.Printf("\nExtraction completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output mesh saved to: %s\n\n", *outputFile)

	fmt.Printf("Volume %v, values in [%g, %g]\n", metrics.Shape, metrics.Lo, metrics.Hi)
	fmt.Printf("- Load: %v, preprocess: %v, extract: %v, write: %v\n",
		metrics.LoadTime, metrics.PreprocessTime, metrics.ExtractTime, metrics.WriteTime)

	fmt.Printf("\nSurfaces:\n")
	fmt.Printf("=========\n")
	for _, p := range metrics.Parts {
		s := p.Summary
		fmt.Printf("Isovalue %g: %d triangles, %d vertices\n", p.Isovalue, s.Triangles, s.Vertices)
		if s.Triangles == 0 {
			continue
		}
		fmt.Printf("- Area: %.3f mm^2\n", s.Area)
		fmt.Printf("- Edge length: %.3f +/- %.3f mm\n", s.EdgeMean, s.EdgeStdDev)
		fmt.Printf("- Bounds: (%.2f, %.2f, %.2f) to (%.2f, %.2f, %.2f)\n",
			s.Bounds.Min.X, s.Bounds.Min.Y, s.Bounds.Min.Z, s.Bounds.Max.X, s.Bounds.Max.Y, s.Bounds.Max.Z)
		fmt.Printf("- Histogram estimate: %d voxels, actual %d\n", p.Stats.Estimated, p.Stats.Voxels)
	}

	// Extract and save slices if requested
	if cfg.Output.ExtractSlices {
		fmt.Println("\nExtracting slices along all axes...")

		field, spacing := reconstructor.GetVolume()
		viewer, err := visualization.NewViewer(field, spacing)
		if err != nil {
			log.Fatalf("Failed to create viewer: %v", err)
		}

		for _, axis := range []models.Axis{models.AxisX, models.AxisY, models.AxisZ} {
			axisDir := filepath.Join(cfg.Output.SlicesDir, axis.String())
			fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)

			if err := viewer.SaveSliceSequence(axis, axisDir, "png"); err != nil {
				log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
			}
		}

		fmt.Println("Slice extraction completed!")
	}
}
