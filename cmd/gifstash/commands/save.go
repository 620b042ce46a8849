// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/gifstash/gifstash/cmd/gifstash/cli"
	"github.com/gifstash/gifstash/lib/media"
)

func saveCommand() *cli.Command {
	var common commonFlags
	var title, description, sourceURL string
	var tags []string
	var width, height int
	var duration, frameRate float64

	return &cli.Command{
		Name:    "save",
		Summary: "store a media file",
		Description: "Save reads a media file, processes it through validation,\n" +
			"compression, and quota admission, and stores it under a fresh id.",
		Examples: []cli.Example{
			{Description: "save a capture with tags", Command: `gifstash save clip.gif --title "Cat Jumping" --tags cats,funny`},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("save", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.StringVar(&title, "title", "", "record title (default: file name)")
			flagSet.StringVar(&description, "description", "", "record description")
			flagSet.StringSliceVar(&tags, "tags", nil, "comma-separated tags")
			flagSet.StringVar(&sourceURL, "source-url", "", "URL the media was captured from")
			flagSet.IntVar(&width, "width", 0, "frame width in pixels")
			flagSet.IntVar(&height, "height", 0, "frame height in pixels")
			flagSet.Float64Var(&duration, "duration", 0, "clip length in seconds")
			flagSet.Float64Var(&frameRate, "frame-rate", 0, "frames per second")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("save: exactly one file argument required")
			}
			path := args[0]

			payload, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			info, err := os.Stat(path)
			if err != nil {
				return err
			}

			if title == "" {
				title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			app, err := common.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			record := &media.MediaRecord{
				ID:          uuid.NewString(),
				Title:       title,
				Description: description,
				Payload:     payload,
				MimeType:    detectMimeType(path, payload),
				Tags:        tags,
				Metadata: media.Metadata{
					Width:     width,
					Height:    height,
					Duration:  duration,
					FrameRate: frameRate,
					CreatedAt: info.ModTime().UTC(),
					SourceURL: sourceURL,
				},
			}
			if err := app.store.SaveGif(context.Background(), record); err != nil {
				return err
			}
			fmt.Println(record.ID)
			return nil
		},
	}
}

// detectMimeType prefers the file extension and falls back to content
// sniffing.
func detectMimeType(path string, payload []byte) string {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	return http.DetectContentType(payload)
}
