package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	Token     string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("WEBSUB_SECURITY_URL", "http://localhost:8090")
		token   = envOr("WEBSUB_OPERATOR_TOKEN", "")
		out     = envOr("WEBSUB_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "websub",
		Short: "CLI de operador para el servicio de seguridad de claves",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("falta el token de operador (flag --token o env WEBSUB_OPERATOR_TOKEN)")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env WEBSUB_SECURITY_URL)")
	root.PersistentFlags().StringVar(&token, "token", token, "Bearer token de operador (env WEBSUB_OPERATOR_TOKEN)")
	root.PersistentFlags().StringVar(&out, "out", out, "formato de salida: text|json")

	newClient := func() *client {
		return &client{
			BaseURL:   baseURL,
			Token:     token,
			OutFormat: out,
			HTTP:      &http.Client{Timeout: timeout},
		}
	}

	var (
		rotateType   string
		rotateKey    string
		rotateReason string
	)
	rotate := &cobra.Command{
		Use:   "keys:rotate",
		Short: "Rota una credencial (openai|stripe|webhook|auth)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rotateType == "" || rotateKey == "" {
				return fmt.Errorf("se requieren --type y --key")
			}
			body, _ := json.Marshal(map[string]string{
				"key_type": rotateType,
				"new_key":  rotateKey,
				"reason":   rotateReason,
			})
			c := newClient()
			status, b, err := c.do(http.MethodPost, "/v1/security/keys/rotate", body)
			if err != nil {
				return err
			}
			c.print(status, b)
			if status != http.StatusOK {
				return fmt.Errorf("rotation failed (status=%d)", status)
			}
			return nil
		},
	}
	rotate.Flags().StringVar(&rotateType, "type", "", "tipo de clave")
	rotate.Flags().StringVar(&rotateKey, "key", "", "nuevo valor")
	rotate.Flags().StringVar(&rotateReason, "reason", "", "motivo de la rotación")

	status := &cobra.Command{
		Use:   "keys:status",
		Short: "Estado de validación de las credenciales",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			st, b, err := c.do(http.MethodGet, "/v1/security/keys/status", nil)
			if err != nil {
				return err
			}
			c.print(st, b)
			return nil
		},
	}

	var (
		statsType string
		statsDays int
	)
	stats := &cobra.Command{
		Use:   "usage:stats",
		Short: "Stats agregadas de uso de credenciales",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/v1/security/usage/stats?days=%d", statsDays)
			if statsType != "" {
				path += "&key_type=" + statsType
			}
			c := newClient()
			st, b, err := c.do(http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			c.print(st, b)
			return nil
		},
	}
	stats.Flags().StringVar(&statsType, "type", "", "filtrar por tipo de clave")
	stats.Flags().IntVar(&statsDays, "days", 7, "ventana en días")

	root.AddCommand(rotate, status, stats)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
