package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/editor"
)

// openEditor hands photos to an editor session on this connection and waits
// for the host to relay them back.
func openEditor(ctx context.Context, s *session, ids []string) (*editor.Session, error) {
	var photos contract.Photos
	for _, id := range ids {
		if p, ok := s.store.Photo(id); ok {
			photos = append(photos, p)
		}
	}

	ed := editor.New(s.conn, editor.WithLogger(s.conn.Logger()))
	if err := ed.Listen(s.scope); err != nil {
		return nil, err
	}
	if err := editor.Open(ctx, s.conn, photos); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.conn.Timeout())
	defer cancel()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for len(ed.Photos()) != len(photos) {
		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("editor did not receive the photos: %w", waitCtx.Err())
		case <-ticker.C:
		}
	}
	return ed, nil
}

func parseFilter(spec string) (contract.FilterKind, float64, error) {
	name, raw, ok := strings.Cut(spec, "=")
	if !ok {
		return "", 0, fmt.Errorf("filter %q: want kind=value", spec)
	}
	kind := contract.FilterKind(strings.TrimSpace(name))
	if !kind.Valid() {
		return "", 0, fmt.Errorf("filter %q: unknown kind %q", spec, kind)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", 0, fmt.Errorf("filter %q: %w", spec, err)
	}
	return kind, value, nil
}

func newEditCommand(ctx *commandContext) *cobra.Command {
	var filters []string
	var rotate, scale, skewX, skewY float64
	var reset bool

	cmd := &cobra.Command{
		Use:   "edit <id>...",
		Short: "Apply filters or a transform to photos and save them",
		Example: "  picksy edit 3fa2 --filter brightness=1.2 --filter blur=2\n" +
			"  picksy edit 3fa2 9bc1 --rotate 90",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			type parsed struct {
				kind  contract.FilterKind
				value float64
			}
			var steps []parsed
			for _, spec := range filters {
				kind, value, err := parseFilter(spec)
				if err != nil {
					return err
				}
				steps = append(steps, parsed{kind, value})
			}
			flags := cmd.Flags()
			transformSet := flags.Changed("rotate") || flags.Changed("scale") || flags.Changed("skew-x") || flags.Changed("skew-y")

			return ctx.withStore(cmd.Context(), func(s *session) error {
				ids, err := resolveIDs(s.store, args)
				if err != nil {
					return err
				}
				ed, err := openEditor(cmd.Context(), s, ids)
				if err != nil {
					return err
				}

				for _, p := range ed.Photos() {
					var cfg contract.PhotoConfig
					if p.Config != nil && !reset {
						cfg = p.Config.Clone()
					}
					if transformSet {
						if cfg.Transform == nil {
							cfg.Transform = &contract.Transform{}
						}
						if flags.Changed("rotate") {
							cfg.Transform.Rotate = contract.Float(rotate)
						}
						if flags.Changed("scale") {
							cfg.Transform.Scale = contract.Float(scale)
						}
						if flags.Changed("skew-x") {
							cfg.Transform.SkewX = contract.Float(skewX)
						}
						if flags.Changed("skew-y") {
							cfg.Transform.SkewY = contract.Float(skewY)
						}
					}
					if err := ed.UpdateConfig(p.ID, cfg); err != nil {
						return err
					}
					for _, step := range steps {
						if err := ed.SetFilter(p.ID, step.kind, step.value); err != nil {
							return err
						}
					}
				}

				if err := ed.SaveAll(cmd.Context()); err != nil {
					return err
				}

				rows := make([][]string, 0, len(ids))
				for _, id := range ids {
					filter, transform, err := ed.Style(id)
					if err != nil {
						return err
					}
					rows = append(rows, []string{shortID(id), orDash(&filter), orDash(&transform)})
				}
				printTable(cmd, []string{"ID", "FILTER", "TRANSFORM"}, rows, nil)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Filter as kind=value; repeat to chain")
	cmd.Flags().Float64Var(&rotate, "rotate", 0, "Rotation in degrees")
	cmd.Flags().Float64Var(&scale, "scale", 1, "Scale factor")
	cmd.Flags().Float64Var(&skewX, "skew-x", 0, "Horizontal skew in degrees")
	cmd.Flags().Float64Var(&skewY, "skew-y", 0, "Vertical skew in degrees")
	cmd.Flags().BoolVar(&reset, "reset", false, "Start from an empty config instead of the saved one")
	return cmd
}

// decodeDataURI returns the media type and bytes of a base64 data URI
func decodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data URI has no payload")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return mediaType, []byte(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}
	return mediaType, data, nil
}

func newFullResCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fullres <id>",
		Short: "Fetch the original-resolution image of a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(s *session) error {
				ids, err := resolveIDs(s.store, args)
				if err != nil {
					return err
				}
				ed, err := openEditor(cmd.Context(), s, ids)
				if err != nil {
					return err
				}
				uri, ok, err := ed.FullRes(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("host has no original for %s", shortID(ids[0]))
				}
				mediaType, data, err := decodeDataURI(uri)
				if err != nil {
					return err
				}
				if output == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s, %d bytes\n", mediaType, len(data))
					return nil
				}
				if err := os.WriteFile(output, data, 0644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %d bytes)\n", output, mediaType, len(data))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the image to this file")
	return cmd
}
