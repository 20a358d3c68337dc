package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/picksy/desktop/internal/bridge"
	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/library"
	"github.com/picksy/desktop/internal/stacking"
)

// resolveIDs expands unique id prefixes against the loaded library
func resolveIDs(store *library.Store, args []string) ([]string, error) {
	photos := store.Photos()
	out := make([]string, 0, len(args))
	for _, arg := range args {
		var matches []string
		for _, p := range photos {
			if p.ID == arg {
				matches = []string{p.ID}
				break
			}
			if strings.HasPrefix(p.ID, arg) {
				matches = append(matches, p.ID)
			}
		}
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("no photo matches %q", arg)
		case 1:
			out = append(out, matches[0])
		default:
			return nil, fmt.Errorf("%q matches %d photos; give more of the id", arg, len(matches))
		}
	}
	return out, nil
}

func stackSizes(photos []contract.Photo) map[string]int {
	sizes := make(map[string]int)
	for id, members := range stacking.StackGroups(photos) {
		sizes[id] = len(members)
	}
	return sizes
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var favorites bool
	var author string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every photo in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(s *session) error {
				photos := stacking.FilterByAuthor(s.store.Photos(), author)
				if favorites {
					kept := photos[:0]
					for _, p := range photos {
						if p.Favorite {
							kept = append(kept, p)
						}
					}
					photos = kept
				}
				return printPhotos(cmd, ctx.opts.json, photos, stackSizes(photos))
			})
		},
	}
	cmd.Flags().BoolVar(&favorites, "favorites", false, "Only list favorites")
	cmd.Flags().StringVar(&author, "author", "", "Only list photos by this peer")
	return cmd
}

func newGalleryCommand(ctx *commandContext) *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "Show the gallery grid: one tile per stack plus loose photos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(s *session) error {
				view := s.store.Gallery(author)
				if ctx.opts.json {
					return writeJSON(cmd, view)
				}
				sizes := make(map[string]int, len(view.Stacks))
				for id, members := range view.Stacks {
					sizes[id] = len(members)
				}
				printTable(cmd, photoHeaders, photoRows(view.Display, sizes), nil)
				fmt.Fprintf(cmd.OutOrStdout(), "%d tiles, %d photos, %d stacks, authors: %s\n",
					len(view.Display), view.Total, len(view.Stacks), strings.Join(view.Authors, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "Only show photos by this peer")
	return cmd
}

func printImport(cmd *cobra.Command, asJSON bool, res contract.ImportResult) error {
	if asJSON {
		return writeJSON(cmd, res)
	}
	if res.Cancelled {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing imported")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d photos\n", len(res.Photos))
	return printPhotos(cmd, false, res.Photos, nil)
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import [folder]",
		Short: "Import every image below a host folder (default: the host's import folder)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var folder string
			if len(args) == 1 {
				folder = args[0]
			}
			return ctx.withStore(cmd.Context(), func(s *session) error {
				res, err := s.store.AddPhotosFromFolder(cmd.Context(), folder)
				if err != nil {
					return err
				}
				return printImport(cmd, ctx.opts.json, res)
			})
		},
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>...",
		Short: "Add image files to the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, len(args))
			for i, arg := range args {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return err
				}
				paths[i] = abs
			}
			return ctx.withStore(cmd.Context(), func(s *session) error {
				res, err := s.store.AddPhotosToLibrary(cmd.Context(), paths...)
				if err != nil {
					return err
				}
				return printImport(cmd, ctx.opts.json, res)
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove photos from the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(s *session) error {
				ids, err := resolveIDs(s.store, args)
				if err != nil {
					return err
				}
				var photos contract.Photos
				for _, id := range ids {
					if p, ok := s.store.Photo(id); ok {
						photos = append(photos, p)
					}
				}
				if err := s.store.RemovePhotosFromLibrary(cmd.Context(), photos); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d photos\n", len(photos))
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every photo from the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear the library without --yes")
			}
			return ctx.withStore(cmd.Context(), func(s *session) error {
				if err := s.store.ClearLibrary(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Library cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing the library")
	return cmd
}

func newFavoriteCommand(ctx *commandContext) *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   "favorite <id>...",
		Short: "Mark photos as favorites",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(s *session) error {
				ids, err := resolveIDs(s.store, args)
				if err != nil {
					return err
				}
				return s.store.SetPhotosFavorite(cmd.Context(), ids, !off)
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Clear the favorite flag instead")
	return cmd
}

func newStackCommand(ctx *commandContext) *cobra.Command {
	var stackID, primary string

	cmd := &cobra.Command{
		Use:   "stack <id>...",
		Short: "Group photos into a stack",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(s *session) error {
				ids, err := resolveIDs(s.store, args)
				if err != nil {
					return err
				}
				primaryID := ids[0]
				if primary != "" {
					resolved, err := resolveIDs(s.store, []string{primary})
					if err != nil {
						return err
					}
					primaryID = resolved[0]
				}
				id := stackID
				if id == "" {
					id = "stack-" + shortID(primaryID)
				}
				if err := s.store.SetPhotoStack(cmd.Context(), ids, id, primaryID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stacked %d photos as %s\n", len(ids), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&stackID, "id", "", "Stack id (default: derived from the primary)")
	cmd.Flags().StringVar(&primary, "primary", "", "Primary photo (default: the first id)")
	return cmd
}

func newUnstackCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unstack <id>...",
		Short: "Take photos out of their stacks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(s *session) error {
				ids, err := resolveIDs(s.store, args)
				if err != nil {
					return err
				}
				return s.store.ClearPhotoStack(cmd.Context(), ids)
			})
		},
	}
}

func newPrimaryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "primary <photo-id>",
		Short: "Make a photo the primary of its stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(s *session) error {
				ids, err := resolveIDs(s.store, args)
				if err != nil {
					return err
				}
				photo, _ := s.store.Photo(ids[0])
				if !photo.InStack() {
					return fmt.Errorf("photo %s is not in a stack", shortID(photo.ID))
				}
				return s.store.SetStackPrimary(cmd.Context(), photo.StackKey(), photo.ID)
			})
		},
	}
}

func newAutoStackCommand(ctx *commandContext) *cobra.Command {
	var author string
	var watch bool

	cmd := &cobra.Command{
		Use:   "autostack",
		Short: "Stack photos whose filenames look like a burst",
		Long: "Commits filename-based stacks for unstacked photos. With --watch the " +
			"stacker keeps running as the library changes and undoes its stacks on exit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(s *session) error {
				stacker := library.NewAutoStacker(s.store)
				n, err := stacker.Enable(cmd.Context(), author)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d stacks\n", n)
				if !watch {
					return printCreated(cmd, ctx.opts.json, stacker.Created())
				}
				return watchAutoStack(cmd, s, stacker)
			})
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "Only stack photos by this peer")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep stacking new photos until interrupted")
	return cmd
}

func printCreated(cmd *cobra.Command, asJSON bool, created map[string][]string) error {
	if asJSON {
		return writeJSON(cmd, created)
	}
	ids := make([]string, 0, len(created))
	for id := range created {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		members := make([]string, len(created[id]))
		for i, m := range created[id] {
			members[i] = shortID(m)
		}
		rows = append(rows, []string{shortID(id), fmt.Sprint(len(members)), strings.Join(members, " ")})
	}
	printTable(cmd, []string{"STACK", "SIZE", "PHOTOS"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft})
	return nil
}

func watchAutoStack(cmd *cobra.Command, s *session, stacker *library.AutoStacker) error {
	changed := make(chan struct{}, 1)
	unsubscribe := s.store.Subscribe(func(library.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-cmd.Context().Done():
			undoCtx, cancel := context.WithTimeout(context.Background(), s.conn.Timeout())
			defer cancel()
			if err := stacker.Disable(undoCtx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Auto-stacks removed")
			return nil
		case <-changed:
			n, err := stacker.Refresh(cmd.Context())
			if err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(cmd.ErrOrStderr(), "auto-stack failed: %v\n", err)
				continue
			}
			if n > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d stacks\n", n)
			}
		}
	}
}

func newPresenceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "presence",
		Short: "Show peers connected to the host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withConn(cmd.Context(), func(conn *bridge.Conn) error {
				scope := bridge.NewScope(cmd.Context())
				defer scope.Close()

				got := make(chan contract.PresencePayload, 1)
				_, err := bridge.Listen(scope, conn, contract.Presence, func(p contract.PresencePayload) {
					select {
					case got <- p:
					default:
					}
				})
				if err != nil {
					return err
				}

				waitCtx, cancel := context.WithTimeout(cmd.Context(), conn.Timeout())
				defer cancel()
				select {
				case p := <-got:
					return printPresence(cmd, ctx.opts.json, p)
				case <-waitCtx.Done():
					return fmt.Errorf("host sent no presence: %w", waitCtx.Err())
				}
			})
		},
	}
}

func printPresence(cmd *cobra.Command, asJSON bool, p contract.PresencePayload) error {
	if asJSON {
		return writeJSON(cmd, p)
	}
	rows := [][]string{{"local", p.LocalPeer.DisplayName(), p.LocalPeer.PeerKey}}
	for _, peer := range p.RemotePeers {
		rows = append(rows, []string{"remote", peer.DisplayName(), peer.PeerKey})
	}
	printTable(cmd, []string{"ROLE", "NAME", "PEER KEY"}, rows, nil)
	fmt.Fprintf(cmd.OutOrStdout(), "%d online\n", p.OnlineCount())
	return nil
}

func newMetadataCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <path>",
		Short: "Read the EXIF summary of a host-side file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withConn(cmd.Context(), func(conn *bridge.Conn) error {
				meta, err := bridge.Invoke(cmd.Context(), conn, contract.AnalyzeImageMetadata, contract.PathArgs{Path: args[0]})
				if err != nil {
					return err
				}
				if ctx.opts.json {
					return writeJSON(cmd, meta)
				}
				coords := "-"
				if meta.Latitude != nil && meta.Longitude != nil {
					coords = fmt.Sprintf("%.6f, %.6f", *meta.Latitude, *meta.Longitude)
				}
				printTable(cmd, []string{"FIELD", "VALUE"}, [][]string{
					{"Taken", orDash(meta.Datetime)},
					{"Make", orDash(meta.Make)},
					{"Model", orDash(meta.Model)},
					{"Location", coords},
				}, nil)
				return nil
			})
		},
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print a line every time the library changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(s *session) error {
				if err := s.store.ListenPresence(s.scope); err != nil {
					return err
				}
				var mu sync.Mutex
				var last uint64
				unsubscribe := s.store.Subscribe(func(snap library.Snapshot) {
					mu.Lock()
					defer mu.Unlock()
					if snap.Version <= last {
						return
					}
					last = snap.Version
					online := 0
					if snap.Presence != nil {
						online = snap.Presence.OnlineCount()
					}
					fmt.Fprintf(cmd.OutOrStdout(), "v%d %s: %d photos, %d stacks, %d online\n",
						snap.Version, snap.State, len(snap.Photos), len(stacking.StackGroups(snap.Photos)), online)
				})
				defer unsubscribe()
				<-cmd.Context().Done()
				return nil
			})
		},
	}
}
