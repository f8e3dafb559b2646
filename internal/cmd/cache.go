package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neex/neex/internal/config"
	"github.com/neex/neex/internal/remotecache"
)

// newCacheCommand implements `neex cache status|login|logout` (spec.md §6):
// inspect and configure the remote cache credentials persisted to
// `.neex/remote-cache.json`.
func newCacheCommand(newApp func(*cobra.Command) (*App, error)) *cobra.Command {
	root := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and configure the remote artifact cache",
	}

	root.AddCommand(newCacheStatusCommand(newApp), newCacheLoginCommand(), newCacheLogoutCommand())
	return root
}

func newCacheStatusCommand(newApp func(*cobra.Command) (*App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the configured remote cache is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := app.Close(); closeErr != nil {
					app.Logger.Warn("cleanup failed", "error", closeErr)
				}
			}()

			if app.Config.RemoteCache == nil {
				fmt.Println("remote cache: not configured")
				return nil
			}
			client := remotecache.New(*app.Config.RemoteCache)
			if client.CheckConnection() {
				fmt.Printf("remote cache: reachable (%s)\n", app.Config.RemoteCache.Endpoint)
			} else {
				fmt.Printf("remote cache: unreachable (%s)\n", app.Config.RemoteCache.Endpoint)
			}
			return nil
		},
	}
}

func newCacheLoginCommand() *cobra.Command {
	var endpoint, bucket, accessKey, secretKey, region, provider string

	c := &cobra.Command{
		Use:   "login",
		Short: "Persist remote cache credentials to .neex/remote-cache.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rootDir, _ := cmd.Flags().GetString("cwd")
			if rootDir == "" {
				rootDir = "."
			}
			cfg := &remotecache.Config{
				Provider: provider, Endpoint: endpoint, Bucket: bucket,
				AccessKey: accessKey, SecretKey: secretKey, Region: region,
			}
			if err := config.WriteRemoteCacheFile(rootDir, cfg); err != nil {
				return err
			}
			fmt.Println("remote cache credentials saved")
			return nil
		},
	}

	c.Flags().StringVar(&provider, "provider", "s3", "remote cache provider (s3 or r2)")
	c.Flags().StringVar(&endpoint, "endpoint", "", "remote cache endpoint URL")
	c.Flags().StringVar(&bucket, "bucket", "", "remote cache bucket name")
	c.Flags().StringVar(&accessKey, "access-key", "", "access key id")
	c.Flags().StringVar(&secretKey, "secret-key", "", "secret access key")
	c.Flags().StringVar(&region, "region", "", "bucket region")
	return c
}

func newCacheLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove persisted remote cache credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rootDir, _ := cmd.Flags().GetString("cwd")
			if rootDir == "" {
				rootDir = "."
			}
			if err := config.DeleteRemoteCacheFile(rootDir); err != nil {
				return err
			}
			fmt.Println("remote cache credentials removed")
			return nil
		},
	}
}
