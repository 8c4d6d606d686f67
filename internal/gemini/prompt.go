package gemini

import (
	"fmt"
	"strings"

	"github.com/victornm/scamquiz/internal/domain"
)

// DefaultTemplates are common scam messages seen in Taiwan.
var DefaultTemplates = []string{
	"【中華郵政】您的包裹因地址不完整無法投遞，請於24小時內點擊以下連結更新收件資訊，逾期將退回寄件人：http://post-tw.cc/u8k2",
	"【台灣銀行】您的帳戶偵測到異常登入，已暫停網路銀行服務。請立即點擊連結驗證身分以恢復使用：https://bot-verify.top/login",
	"恭喜您！您的手機門號在本月週年慶抽獎活動中抽中iPhone 15，請先支付運費及手續費NT$299，即可安排寄送。",
	"您好，這裡是某購物網站客服。由於系統錯誤，您的訂單被設定為分期付款，每月將扣款3,000元。請依照指示至ATM操作解除設定。",
	"媽，我換手機號碼了，這是我的新號碼。我現在急需一筆錢周轉，可以先幫我轉帳五萬元嗎？明天就還你。",
	"加入我們的投資群組，由專業老師帶單操作，保證每月獲利30%以上，名額有限，請立即加LINE：@stock888",
	"【監理站】您有一筆交通罰鍰逾期未繳，將移送強制執行，請於今日內點擊連結線上繳納：http://mvdis-gov.info/pay",
}

func scamPrompt(template, hint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "以下是一個詐騙訊息範例:\n\n%s\n\n", template)
	if hint != "" {
		fmt.Fprintf(&b, "請以「%s」為主題，", hint)
	} else {
		b.WriteString("請")
	}
	b.WriteString("根據這個範例生成一個新的、類似的詐騙訊息。保持相似的結構和風格，" +
		"但改變具體內容。請確保新生成的訊息具有教育性質，可以用於提高人們對詐騙的警惕性。" +
		"只需要生成詐騙訊息本身，不要添加任何額外的說明或指示。")
	return b.String()
}

func legitPrompt(template, hint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "以下是一個詐騙訊息範例:\n\n%s\n\n", template)
	if hint != "" {
		fmt.Fprintf(&b, "請以「%s」為主題，", hint)
	} else {
		b.WriteString("請針對與這個範例相同的主題，")
	}
	b.WriteString("生成一則真實機構或親友會發送的正常訊息。訊息應該看起來可信，" +
		"不要求點擊不明連結、不要求轉帳或提供個人資料，語氣與長度和範例相近。" +
		"只需要生成訊息本身，不要添加任何額外的說明或指示。")
	return b.String()
}

func analysisPrompt(req domain.AnalysisRequest) string {
	truth := "這則訊息實際上是詐騙訊息。"
	elements := "可疑元素"
	if !req.IsScam {
		truth = "這則訊息實際上是正常的訊息，並不是詐騙。"
		elements = "可信元素"
	}

	guess := "使用者判斷它是詐騙訊息。"
	if !req.UserGuess {
		guess = "使用者判斷它不是詐騙訊息。"
	}

	return fmt.Sprintf("以下是一則訊息:\n\n%s\n\n%s%s\n\n", req.Text, truth, guess) +
		"請分析這條訊息，並提供詳細的辨別建議。包括以下幾點：\n" +
		fmt.Sprintf("1. 這條訊息中的%s\n", elements) +
		fmt.Sprintf("2. 為什麼這些元素是%s的\n", strings.TrimSuffix(elements, "元素")) +
		"3. 如何識別類似的訊息\n" +
		"4. 面對這種訊息時應該採取什麼行動\n" +
		"請以教育性和提醒性的語氣回答，幫助人們提高警惕。不要使用粗體或任何特殊格式，只需使用純文本。不要使用破折號，而是使用數字列表。"
}
