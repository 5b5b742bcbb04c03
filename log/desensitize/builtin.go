package desensitize

var (
	// CredentialQueryRule masks credentials passed in URL query strings.
	CredentialQueryRule = must(NewQueryRule("credential_query",
		"token", "access_token", "refresh_token", "api_key", "apikey", "key",
		"password", "secret", "signature", "sig"))

	// PasswordRule 密码字段
	PasswordRule = must(NewFieldRule("password", "password"))

	// TokenRule token 字段
	TokenRule = must(NewFieldRule("token", "token"))

	// SecretRule secret 字段
	SecretRule = must(NewFieldRule("secret", "secret"))

	// BankCardRule 银行卡号，保留前4位和后4位
	BankCardRule = must(NewContentRule("bankcard", `\b(\d{4})\d{8,11}(\d{4})\b`, "$1 **** **** $2"))
)

// BuiltinRules returns the rules installed on the global logger.
func BuiltinRules() []Rule {
	return []Rule{
		CredentialQueryRule,
		PasswordRule,
		TokenRule,
		SecretRule,
		BankCardRule,
	}
}
