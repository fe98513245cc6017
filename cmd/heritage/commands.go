package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackielii/heritage/internal/content"
	"github.com/jackielii/heritage/internal/qr"
	"github.com/jackielii/heritage/internal/web"
)

func newQRCmd(a *app) *cobra.Command {
	var out, text string
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Write the page's QR code as a PNG file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" {
				text = a.cfg.PublicURL
			}
			data, err := qr.NewPNGEncoder().Encode(cmd.Context(), text, a.cfg.QR)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", text, err)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes) for %s\n", out, len(data), text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", qr.DownloadFilename, "output file")
	cmd.Flags().StringVar(&text, "text", "", "text to encode (defaults to the public URL)")
	return cmd
}

func newRoutesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the portal's routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := content.Default()
			if err != nil {
				return err
			}
			// the slot is never started; listing routes needs no encode
			slot := qr.NewSlot(qr.NewPNGEncoder(), a.cfg.PublicURL, a.cfg.QR, nil)
			site, err := web.NewServer(web.Deps{
				Catalog:  content.StaticStore(cat),
				QR:       slot,
				Sessions: web.NewSessionManager(a.cfg.Session),
			})
			if err != nil {
				return err
			}
			return site.PrintRoutes(cmd.OutOrStdout())
		},
	}
}

func newContentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Inspect the content catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Decode and validate a catalog file (the configured or embedded one by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.ContentPath
			if len(args) == 1 {
				path = args[0]
			}
			var (
				cat *content.Catalog
				err error
			)
			if path == "" {
				path = "(embedded)"
				cat, err = content.Default()
			} else {
				cat, err = content.Load(path)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok: %s, %d landmarks, %d culture blocks, song %q, tale %q\n",
				path, cat.Region, len(cat.Landmarks), len(cat.Culture), cat.Song.Title, cat.Tale.Title)
			return nil
		},
	})
	return cmd
}
