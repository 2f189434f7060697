package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Seann-Moser/integrations/oauth/oclient"
)

var integrationCmd = &cobra.Command{
	Use:   "integration",
	Short: "Manage per-org OAuth app settings stored in Mongo",
	Long: `Per-org settings take precedence over the provider secrets from the
environment when INTEGRATIONS_MONGO_INTEGRATIONS is enabled.`,
}

var integrationSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update an org's app settings for a provider",
	RunE:  runIntegrationSet,
}

var integrationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an org's app settings",
	RunE:  runIntegrationList,
}

var integrationDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an org's app settings for a provider",
	RunE:  runIntegrationDelete,
}

var (
	integrationOrg      string
	integrationProvider string
	integrationSettings oclient.Integration
	integrationScopes   string
)

func init() {
	for _, c := range []*cobra.Command{integrationSetCmd, integrationListCmd, integrationDeleteCmd} {
		c.Flags().StringVar(&integrationOrg, "org", "", "organization id")
		_ = c.MarkFlagRequired("org")
	}
	for _, c := range []*cobra.Command{integrationSetCmd, integrationDeleteCmd} {
		c.Flags().StringVar(&integrationProvider, "provider", "", "provider name, e.g. hubspot")
		_ = c.MarkFlagRequired("provider")
	}
	f := integrationSetCmd.Flags()
	f.StringVar(&integrationSettings.ClientID, "client-id", "", "OAuth client id")
	f.StringVar(&integrationSettings.ClientSecret, "client-secret", "", "OAuth client secret")
	f.StringVar(&integrationSettings.RedirectURL, "redirect-uri", "", "OAuth redirect URI")
	f.StringVar(&integrationScopes, "scopes", "", "comma separated scopes")

	integrationCmd.AddCommand(integrationSetCmd)
	integrationCmd.AddCommand(integrationListCmd)
	integrationCmd.AddCommand(integrationDeleteCmd)
	rootCmd.AddCommand(integrationCmd)
}

// openIntegrationStore connects to Mongo and returns the store with a cleanup
// func. A non-empty provider must name a configured provider template.
func openIntegrationStore(cmd *cobra.Command, provider string) (*oclient.MongoIntegrationStore, func(), error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if provider != "" {
		if _, ok := cfg.Provider(provider); !ok {
			return nil, nil, fmt.Errorf("unknown provider %q", provider)
		}
	}
	ctx := cmd.Context()
	client, err := connectMongo(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store := oclient.NewMongoIntegrationStore(client.Database(cfg.MongoDatabase))
	return store, func() { _ = client.Disconnect(ctx) }, nil
}

func runIntegrationSet(cmd *cobra.Command, _ []string) error {
	store, done, err := openIntegrationStore(cmd, integrationProvider)
	if err != nil {
		return err
	}
	defer done()

	in := integrationSettings
	in.Provider = integrationProvider
	for _, s := range strings.Split(integrationScopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			in.Scopes = append(in.Scopes, s)
		}
	}

	ctx := cmd.Context()
	err = store.UpdateIntegration(ctx, integrationOrg, integrationProvider, in)
	if errors.Is(err, oclient.ErrIntegrationNotFound) {
		err = store.AddIntegration(ctx, integrationOrg, in)
	}
	if err != nil {
		return err
	}
	cmd.Printf("saved %s settings for org %s\n", integrationProvider, integrationOrg)
	return nil
}

func runIntegrationList(cmd *cobra.Command, _ []string) error {
	store, done, err := openIntegrationStore(cmd, "")
	if err != nil {
		return err
	}
	defer done()

	list, err := store.ListIntegrations(cmd.Context(), integrationOrg)
	if err != nil {
		return err
	}
	for i := range list {
		list[i].ClientSecret = ""
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

func runIntegrationDelete(cmd *cobra.Command, _ []string) error {
	store, done, err := openIntegrationStore(cmd, integrationProvider)
	if err != nil {
		return err
	}
	defer done()

	if err := store.DeleteIntegration(cmd.Context(), integrationOrg, integrationProvider); err != nil {
		return err
	}
	cmd.Printf("deleted %s settings for org %s\n", integrationProvider, integrationOrg)
	return nil
}
