// tools/cmd/webhooksign/main.go
//
// webhooksign prints the headers an MTN or Airtel callback needs to pass
// signature and freshness checks, plus a ready-to-run curl command.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/payment-integration-service/internal/signature"
	"github.com/example/payment-integration-service/internal/webhook"
)

func main() {
	provider := flag.String("provider", "mtn", "mtn or airtel")
	secret := flag.String("secret", os.Getenv("WEBHOOK_SECRET"), "shared webhook secret (default $WEBHOOK_SECRET)")
	body := flag.String("body", "", "callback body; read from stdin when empty")
	reference := flag.String("reference", "", "build a sample SUCCESSFUL callback for this reference instead of -body")
	url := flag.String("url", "http://localhost:8080", "payments-api base URL for the curl line")
	flag.Parse()

	if *secret == "" {
		log.Fatal("a secret is required (-secret or WEBHOOK_SECRET)")
	}
	header, err := signatureHeader(*provider)
	if err != nil {
		log.Fatal(err)
	}

	payload := *body
	switch {
	case *reference != "":
		payload = sample(*provider, *reference)
	case payload == "":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatal(err)
		}
		payload = strings.TrimRight(string(b), "\n")
	}

	sig := signature.Sign([]byte(*secret), []byte(payload))
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	fmt.Printf("%s: %s\n", header, sig)
	fmt.Printf("%s: %s\n\n", webhook.HeaderTimestamp, ts)
	fmt.Printf("curl -sS -X POST %s/webhooks/%s \\\n  -H 'Content-Type: application/json' \\\n  -H '%s: %s' \\\n  -H '%s: %s' \\\n  --data-raw '%s'\n",
		strings.TrimRight(*url, "/"), *provider, header, sig, webhook.HeaderTimestamp, ts, payload)
}

func signatureHeader(provider string) (string, error) {
	switch provider {
	case "mtn":
		return webhook.HeaderMTNSignature, nil
	case "airtel":
		return webhook.HeaderAirtelSignature, nil
	default:
		return "", fmt.Errorf("unknown provider %q", provider)
	}
}

func sample(provider, reference string) string {
	if provider == "airtel" {
		return fmt.Sprintf(`{"eventId":%q,"transaction":{"id":%q,"airtel_money_id":%q,"status_code":"TS"}}`,
			uuid.NewString(), reference, uuid.NewString())
	}
	return fmt.Sprintf(`{"eventId":%q,"externalId":%q,"referenceId":%q,"status":"SUCCESSFUL"}`,
		uuid.NewString(), reference, uuid.NewString())
}
