package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"
	pb "github.com/cheggaaa/pb/v3"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/adilg123/inflate-service/internal/api"
	"github.com/adilg123/inflate-service/internal/compression"
	"github.com/adilg123/inflate-service/internal/config"
)

type CLI struct {
	ConfigFile string           `kong:"help='Path to a TOML config file',type='path',short='c'"`
	Debug      bool             `kong:"help='Enable debug output',short='d'"`
	Version    kong.VersionFlag `help:"Show version and exit" short:"v"`

	Serve      ServeCmd      `kong:"cmd,help='Run the HTTP decompression service'"`
	Decompress DecompressCmd `kong:"cmd,help='Decompress a file'"`
}

type ServeCmd struct {
	Port string `kong:"help='Port to listen on, overrides config',short='p'"`
}

type DecompressCmd struct {
	Input    string `kong:"arg,help='Compressed input file',type='existingfile'"`
	Output   string `kong:"help='Output file, stdout when empty',short='o'"`
	Format   string `kong:"help='Container format',short='f',default='gzip',enum='flate,zlib,gzip'"`
	Progress bool   `kong:"help='Show a progress bar on stderr',short='P'"`
}

type globals struct {
	cfg *config.Config
	log *logrus.Entry
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("inflate"),
		kong.Description("DEFLATE/ZLIB/GZIP decompression tool and service"),
		kong.UsageOnError(),
		kong.Vars{
			"version": config.VERSION,
		})

	cfg, err := loadConfig(cli.ConfigFile)
	if err != nil {
		logrus.Errorf("unable to load config: %s", err)
		os.Exit(1)
	}

	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)
	if cli.Debug {
		logrus.Info("debug mode enabled")
		logrus.SetLevel(logrus.DebugLevel)
	}

	g := &globals{
		cfg: cfg,
		log: logrus.WithField("app", "inflate"),
	}
	ctx.FatalIfErrorf(ctx.Run(g))
}

func loadConfig(file string) (*config.Config, error) {
	if file == "" {
		return config.Load()
	}
	return config.LoadFile(file)
}

func (s *ServeCmd) Run(g *globals) error {
	port := g.cfg.Port
	if s.Port != "" {
		port = s.Port
	}
	if g.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.NewHandler(g.cfg, g.log))

	g.log.WithFields(logrus.Fields{
		"port":          port,
		"environment":   g.cfg.Environment,
		"max_file_size": g.cfg.MaxFileSize,
	}).Info("starting server")

	if err := router.Run(":" + port); err != nil {
		return errors.Wrap(err, "server stopped")
	}
	return nil
}

func (d *DecompressCmd) Run(g *globals) error {
	llog := g.log.WithFields(logrus.Fields{
		"method": "decompress",
		"input":  d.Input,
		"format": d.Format,
	})

	f, err := os.Open(d.Input)
	if err != nil {
		return errors.Wrap(err, "unable to open input")
	}
	defer f.Close()

	var src io.Reader = f
	if d.Progress {
		info, err := f.Stat()
		if err != nil {
			return errors.Wrap(err, "unable to stat input")
		}
		bar := pb.New64(info.Size())
		bar.Set(pb.Bytes, true)
		bar.Start()
		defer bar.Finish()
		src = bar.NewProxyReader(f)
	}

	var dst io.Writer = os.Stdout
	if d.Output != "" {
		out, err := os.Create(d.Output)
		if err != nil {
			return errors.Wrap(err, "unable to create output")
		}
		defer out.Close()
		dst = out
	}

	stats, err := compression.DecompressStream(dst, src, compression.Options{
		Format:           d.Format,
		LiteralRootBits:  g.cfg.LiteralRootBits,
		DistanceRootBits: g.cfg.DistanceRootBits,
		Log:              llog,
	})
	if err != nil {
		if d.Output != "" {
			// partial output is not usable
			os.Remove(d.Output)
		}
		return err
	}

	llog.WithFields(logrus.Fields{
		"compressed_size":   stats.CompressedSize,
		"decompressed_size": stats.DecompressedSize,
		"blocks":            stats.Deflate.Blocks,
		"stored_blocks":     stats.Deflate.StoredBlocks,
		"fixed_blocks":      stats.Deflate.FixedBlocks,
		"dynamic_blocks":    stats.Deflate.DynamicBlocks,
	}).Info("decompression complete")
	return nil
}
