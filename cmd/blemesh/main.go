package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/permissionlesstech/blemesh/internal/identity"
	"github.com/permissionlesstech/blemesh/internal/transport"
	"github.com/permissionlesstech/blemesh/pkg/utils"
)

const (
	AppVersion = "0.1.0"

	// Janela de deduplicação de mensagens já exibidas
	seenMessageTTL      = 5 * time.Minute
	seenCleanupInterval = time.Minute
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "blemesh",
	Short: "blemesh - malha ad-hoc de mensagens sobre BLE",
	Long: `blemesh forma uma malha ad-hoc com os nós próximos usando Bluetooth
Low Energy: cada nó anuncia a própria presença como periférico e escaneia
como central ao mesmo tempo, sem servidor central nem pareamento.`,
	Version: AppVersion,
	RunE:    run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "caminho do arquivo de configuração (padrão: ~/.config/blemesh/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "nível de log (debug, info, warn, error)")

	rootCmd.Flags().String("apelido", "", "apelido anunciado aos peers (se não definido, será gerado)")
	cobra.CheckErr(viper.BindPFlag("apelido", rootCmd.Flags().Lookup("apelido")))
}

// initConfig lê o arquivo de configuração e as variáveis de ambiente
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(filepath.Join(home, ".config", "blemesh"))
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("BLEMESH")
	viper.AutomaticEnv()

	viper.SetDefault("prontidao.tentativas", transport.DefaultReadyPollAttempts)
	viper.SetDefault("prontidao.intervalo", transport.DefaultReadyPollInterval)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "usando arquivo de configuração:", viper.ConfigFileUsed())
	}
}

func run(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("nível de log inválido: %v", err)
	}
	logrus.SetLevel(level)

	id, err := identity.New()
	if err != nil {
		return fmt.Errorf("erro ao gerar identidade: %v", err)
	}

	nickname := viper.GetString("apelido")
	if nickname == "" {
		nickname = "nó-" + id.PeerID
	}

	provider, err := defaultProvider()
	if err != nil {
		return err
	}

	config := transport.DefaultConfig()
	config.ReadyPollAttempts = viper.GetInt("prontidao.tentativas")
	config.ReadyPollInterval = viper.GetDuration("prontidao.intervalo")

	node, err := transport.New(config, provider)
	if err != nil {
		return err
	}

	// Mensagens podem chegar por mais de um canal; exibir cada uma só uma vez
	seen := utils.NewExpiringSet(seenMessageTTL, seenCleanupInterval)
	defer seen.Stop()

	node.SetOnPeerDiscovered(func(peerID string, publicKeyDigest []byte) {
		fmt.Printf("Peer descoberto: %s (digest %x)\n", peerID, publicKeyDigest)
	})

	node.SetOnMessageReceived(func(peerID string, payload []byte) {
		messageID, content, err := decodeEnvelope(payload)
		if err != nil {
			logrus.WithError(err).Debug("mensagem recebida em formato inesperado")
			return
		}
		if !seen.Add(messageID) {
			return
		}
		if peerID == "" {
			peerID = "desconhecido"
		}
		fmt.Printf("[%s] %s: %s\n", time.Now().Format("15:04:05"), peerID, content)
	})

	node.SetOnPeerDisconnected(func(peerID string) {
		fmt.Printf("Peer desconectado: %s\n", peerID)
	})

	if err := node.StartAdvertising(id.PeerID, nickname, id.PublicKeyDigest()); err != nil {
		return fmt.Errorf("erro ao iniciar anúncio: %v", err)
	}

	fmt.Println("blemesh", AppVersion)
	fmt.Println("Plataforma:", provider.PlatformName())
	fmt.Println("ID do nó:", id.PeerID)
	fmt.Println("Apelido:", nickname)
	fmt.Println("Digite /help para ajuda")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go inputLoop(node, seen, done)

	select {
	case <-sigChan:
		fmt.Println("\nEncerrando...")
	case <-done:
	}

	node.Stop()
	fmt.Println("blemesh encerrado")

	return nil
}

// inputLoop processa entrada do usuário até EOF ou /quit
func inputLoop(node *transport.Transport, seen *utils.ExpiringSet, done chan<- struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := processCommand(input, node); quit {
				return
			}
			continue
		}

		sendMessage(node, seen, input)
	}
}

// sendMessage empacota e envia uma mensagem de texto pela malha
func sendMessage(node *transport.Transport, seen *utils.ExpiringSet, content string) {
	payload, messageID, err := encodeEnvelope([]byte(content))
	if err != nil {
		fmt.Println("Erro ao preparar mensagem:", err)
		return
	}

	// Não reexibir a própria mensagem se ela voltar pela malha
	seen.Add(messageID)

	if !node.SendMessage(payload) {
		fmt.Println("Nenhum canal conseguiu entregar a mensagem")
	}
}

// processCommand processa comandos do usuário. Retorna true para encerrar.
func processCommand(input string, node *transport.Transport) bool {
	parts := strings.SplitN(input, " ", 2)
	command := parts[0]

	switch command {
	case "/help", "/h":
		fmt.Println("Comandos disponíveis:")
		fmt.Println("  /peers          lista os peers conectados")
		fmt.Println("  /status         mostra o estado do anúncio e do escaneamento")
		fmt.Println("  /scan           inicia o escaneamento")
		fmt.Println("  /stopscan       para o escaneamento")
		fmt.Println("  /quit           encerra o programa")
		fmt.Println("Qualquer outra linha é enviada como mensagem à malha.")

	case "/peers":
		peers := node.ConnectedPeers()
		if len(peers) == 0 {
			fmt.Println("Nenhum peer conectado")
			return false
		}
		fmt.Printf("%d peer(s) conectado(s):\n", len(peers))
		for _, peerID := range peers {
			fmt.Println(" -", peerID)
		}

	case "/status":
		fmt.Println("Anunciando:", node.IsAdvertising())
		fmt.Println("Escaneando:", node.IsScanning())
		fmt.Println("Peers conectados:", node.ConnectedPeerCount())

	case "/scan":
		if err := node.StartScanning(nil); err != nil {
			fmt.Println("Erro ao iniciar escaneamento:", err)
		}

	case "/stopscan":
		node.StopScanning()

	case "/quit", "/q", "/sair":
		return true

	default:
		fmt.Println("Comando desconhecido:", command)
	}

	return false
}
