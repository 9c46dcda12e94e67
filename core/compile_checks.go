package core

var (
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ OptionsResolver = GoOptionsResolver{}
	_ RawConfigLoader = EnvConfigLoader{}
	_ RawConfigLoader = staticRawConfigLoader{}
)
