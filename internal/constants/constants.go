package constants

const USER_AGENT = "catalogcache/0.1.0 (+https://github.com/Amund211/catalogcache)"
