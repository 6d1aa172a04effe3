package logger

import (
	"regexp"
)

const (
	passwordPattern        = `(?i)(password|pwd)([\'\"\s:=]+)([a-z0-9!\"#\$%&\\\'\(\)\*\+\,-\./:;<=>\?\@\[\]\^_\{\|\}~]{8,})`
	connectionTokenPattern = `(?i)(access_token|token)([\'\"\s:=]+)([a-z0-9=/_\-\+\.]{8,})`
	clientSecretPattern    = `(?i)(client_secret|clientSecret)([\'\"\s:= ]+)([a-z0-9!\"#\$%&\\\'\(\)\*\+\,-\./:;<=>\?\@\[\]\^_\{\|\}~]+)`
	privateKeyParamPattern = `(?i)private_key=([A-Za-z0-9/+=_%-]+)(&|$|\s)`
	privateKeyPattern      = `(?s)-----BEGIN ([A-Z ]*)PRIVATE KEY-----.*?-----END ([A-Z ]*)PRIVATE KEY-----` // pragma: allowlist secret
	dsnPasswordPattern     = `([^/:@\s]+):([^@/:\s]{3,})@`
	jwtTokenPattern        = `(?i)(jwt|bearer)[\s:=]*([a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+)` // pragma: allowlist secret
)

var (
	passwordRegexp        = regexp.MustCompile(passwordPattern)
	connectionTokenRegexp = regexp.MustCompile(connectionTokenPattern)
	clientSecretRegexp    = regexp.MustCompile(clientSecretPattern)
	privateKeyParamRegexp = regexp.MustCompile(privateKeyParamPattern)
	privateKeyRegexp      = regexp.MustCompile(privateKeyPattern)
	dsnPasswordRegexp     = regexp.MustCompile(dsnPasswordPattern)
	jwtTokenRegexp        = regexp.MustCompile(jwtTokenPattern)
)

type secretmasker string

func (s secretmasker) maskJwtToken() secretmasker {
	return secretmasker(jwtTokenRegexp.ReplaceAllString(s.String(), "$1 ****"))
}

func (s secretmasker) maskConnectionToken() secretmasker {
	return secretmasker(connectionTokenRegexp.ReplaceAllString(s.String(), "$1${2}****"))
}

func (s secretmasker) maskPassword() secretmasker {
	return secretmasker(passwordRegexp.ReplaceAllString(s.String(), "$1${2}****"))
}

func (s secretmasker) maskDsnPassword() secretmasker {
	return secretmasker(dsnPasswordRegexp.ReplaceAllString(s.String(), "$1:****@"))
}

func (s secretmasker) maskClientSecret() secretmasker {
	return secretmasker(clientSecretRegexp.ReplaceAllString(s.String(), "$1${2}****"))
}

func (s secretmasker) maskPrivateKeyParam() secretmasker {
	return secretmasker(privateKeyParamRegexp.ReplaceAllString(s.String(), "private_key=****$2"))
}

func (s secretmasker) maskPrivateKey() secretmasker {
	return secretmasker(privateKeyRegexp.ReplaceAllString(s.String(), "-----BEGIN ${1}PRIVATE KEY-----XXXX-----END ${2}PRIVATE KEY-----")) // pragma: allowlist secret
}

func (s secretmasker) String() string {
	return string(s)
}

// MaskSecrets masks passwords, tokens, client secrets and private keys in text.
func MaskSecrets(text string) string {
	return secretmasker(text).
		maskJwtToken().
		maskConnectionToken().
		maskPassword().
		maskDsnPassword().
		maskClientSecret().
		maskPrivateKeyParam().
		maskPrivateKey().
		String()
}
