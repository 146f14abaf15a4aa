package config

type InternalConfig struct {
	App      App
	JWT      AppJWT
	Minio    AppMinio
	RabbitMQ AppRabbitMQ
	Cache    AppCache
}

type App struct {
	Env                        string
	Port                       string
	Version                    string
	Timezone                   string
	EndpointPrefix             string
	MaxRequests                int
	ShutdownTimeoutInSeconds   int
	RequestTimeoutInSeconds    int
	RequestBodyLimitInMegabyte int
	AdminAPIKeyHash            string
}

type AppJWT struct {
	Secret string
}

type AppMinio struct {
	BucketName             string
	MaxUploadSizeInMB      int
	PreSignedExpiryInHours int
}

type AppRabbitMQ struct {
	NotificationExchange string
	PublishRatePerSecond int
}

type AppCache struct {
	RegistryDefinitionTTLInMinutes int
}
