package activation

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Mailer delivers activation emails. Implementations are fire and forget,
// a nil error means the message was accepted for delivery.
type Mailer interface {
	SendActivationEmail(ctx context.Context, user *User, link string) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, user *User, link string) error

// SendActivationEmail implements Mailer.
func (f MailerFunc) SendActivationEmail(ctx context.Context, user *User, link string) error {
	if f == nil {
		return nil
	}
	return f(ctx, user, link)
}

type printMailer struct{}

func (printMailer) SendActivationEmail(_ context.Context, user *User, link string) error {
	fmt.Println("====== SENDING ACTIVATION EMAIL =======")
	fmt.Printf("to: %s\n", user.Email)
	fmt.Printf("provider: %s\n", user.Provider)
	fmt.Printf("link: %s\n", link)
	return nil
}

// ActivationLink builds the URL emailed to the user
func ActivationLink(baseURL, provider, rawToken string) string {
	baseURL = strings.TrimSpace(baseURL)
	link, err := url.JoinPath(baseURL, provider, "verify", rawToken)
	if err != nil {
		return strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(provider) + "/verify/" + rawToken
	}
	return link
}

// ResendNotice builds the redirect target that tells the user a new email is
// on its way and lets them ask for another one.
func ResendNotice(route, provider, digest string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("digest", digest)
	return strings.TrimSpace(route) + "?" + q.Encode()
}
