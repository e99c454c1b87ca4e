package check

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"

	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/pkg/idgen"
)

// RunInitWizard walks the operator through first-time setup and writes a
// starter env file to path. Only the settings that have no usable default
// are asked for; everything left empty falls back to the documented
// defaults when the file is loaded.
func RunInitWizard(path string) error {
	if config.EnvFileExists(path) {
		overwrite, err := confirmOverwrite(path)
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Printf("Keeping existing %s\n", path)
			return nil
		}
	}

	cfg := config.Default()

	printSection("Source control")
	if err := askSCM(cfg); err != nil {
		return err
	}

	printSection("Review model")
	if err := askLLM(cfg); err != nil {
		return err
	}
	if err := askReviewLanguage(cfg); err != nil {
		return err
	}

	printSection("Webhook")
	if err := askWebhook(cfg); err != nil {
		return err
	}

	printSection("Notifications")
	if err := askNotifier(cfg); err != nil {
		return err
	}

	printSection("Operator access")
	operatorToken, err := askOperator(cfg)
	if err != nil {
		return err
	}

	if err := config.WriteEnvFile(path, cfg); err != nil {
		return err
	}

	fmt.Println()
	color.New(color.FgGreen, color.Bold).Printf("✓ Wrote %s\n", path)
	if operatorToken != "" {
		fmt.Println()
		color.New(color.FgYellow, color.Bold).Println("Operator token (shown once, only its hash is stored):")
		fmt.Printf("  %s\n", operatorToken)
	}
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  patchlens check    verify connectivity to every dependency")
	fmt.Println("  patchlens serve    start the review service")
	return nil
}

// confirmOverwrite asks before replacing an existing env file
func confirmOverwrite(path string) (bool, error) {
	var confirm bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("%s already exists. Overwrite it?", path)).
		Affirmative("Yes").
		Negative("No").
		Value(&confirm).
		Run()
	if err != nil {
		return false, err
	}
	return confirm, nil
}

func askSCM(cfg *config.Config) error {
	if err := huh.NewInput().
		Title("Base URL of the source-control server").
		Placeholder("https://git.example.com").
		Validate(validateURL).
		Value(&cfg.SCM.BaseURL).
		Run(); err != nil {
		return err
	}
	return huh.NewInput().
		Title("Access token for the REST API").
		EchoMode(huh.EchoModePassword).
		Validate(validateRequired("token")).
		Value(&cfg.SCM.Token).
		Run()
}

func askLLM(cfg *config.Config) error {
	if err := huh.NewSelect[string]().
		Title("LLM provider").
		Options(
			huh.NewOption("Hosted chat API (OpenAI-compatible)", config.ProviderHostedChat),
			huh.NewOption("Local model server (Ollama-compatible)", config.ProviderLocalModel),
		).
		Value(&cfg.LLM.Provider).
		Run(); err != nil {
		return err
	}

	if cfg.LLM.Provider == config.ProviderHostedChat {
		if err := huh.NewInput().
			Title("API key").
			EchoMode(huh.EchoModePassword).
			Validate(validateRequired("API key")).
			Value(&cfg.LLM.APIKey).
			Run(); err != nil {
			return err
		}
	}

	if err := huh.NewInput().
		Title("Endpoint URL").
		Description("Leave empty for the provider default.").
		Validate(validateOptionalURL).
		Value(&cfg.LLM.Endpoint).
		Run(); err != nil {
		return err
	}

	return huh.NewInput().
		Title("Model identifier").
		Description("Leave empty for the provider default.").
		Value(&cfg.LLM.Model).
		Run()
}

// askReviewLanguage prefills the detected system language and lets the
// operator override it
func askReviewLanguage(cfg *config.Config) error {
	cfg.Review.Language = config.DetectSystemLanguage().String()
	return huh.NewInput().
		Title("Review output language").
		Description("BCP-47 tag, e.g. en or zh-CN.").
		Validate(validateLanguage).
		Value(&cfg.Review.Language).
		Run()
}

func askWebhook(cfg *config.Config) error {
	var generate bool
	if err := huh.NewConfirm().
		Title("Generate a webhook signing secret?").
		Description("The same secret must be configured on the source-control webhook.").
		Affirmative("Yes").
		Negative("No").
		Value(&generate).
		Run(); err != nil {
		return err
	}
	if generate {
		cfg.Webhook.Secret = idgen.NewSecureSecret(32)
	}
	return nil
}

func askNotifier(cfg *config.Config) error {
	if err := huh.NewInput().
		Title("Email endpoint URL").
		Description("Leave empty to disable notifications.").
		Validate(validateOptionalURL).
		Value(&cfg.Notifier.Endpoint).
		Run(); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Notifier.Endpoint) == "" {
		return nil
	}
	return huh.NewInput().
		Title("Sender address").
		Placeholder("reviews@example.com").
		Value(&cfg.Notifier.FromAddress).
		Run()
}

// askOperator optionally enables the operator gate. It returns the plaintext
// token so the caller can show it exactly once; the config only keeps the
// bcrypt hash.
func askOperator(cfg *config.Config) (string, error) {
	var protect bool
	if err := huh.NewConfirm().
		Title("Protect operator endpoints with a token?").
		Description("Failure retries and resolves will require a login.").
		Affirmative("Yes").
		Negative("No").
		Value(&protect).
		Run(); err != nil {
		return "", err
	}
	if !protect {
		return "", nil
	}

	token := idgen.NewSecureSecret(32)
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash operator token: %w", err)
	}
	cfg.Operator.TokenHash = string(hash)
	cfg.Operator.JWTSecret = idgen.NewSecureSecret(48)
	return token, nil
}

func printSection(title string) {
	fmt.Println()
	color.New(color.FgCyan, color.Bold).Println(title)
}

func validateRequired(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validateLanguage(s string) error {
	_, err := config.ParseLanguage(s)
	return err
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("enter a full URL including the scheme")
	}
	return nil
}

func validateOptionalURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return validateURL(s)
}
